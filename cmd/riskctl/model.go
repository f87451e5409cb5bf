package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/modelstore"
	"credit-risk-engine/internal/services/scoring"
)

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Inspect model artifacts",
}

var modelValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a model artifact",
	Long:  "Loads a YAML or JSON scorecard artifact with the same checks the engine applies at startup and prints its terms.",
	RunE:  runModelValidate,
}

var modelFeaturesCmd = &cobra.Command{
	Use:   "features",
	Short: "List the features a scorecard may reference",
	RunE:  runModelFeatures,
}

var modelValidateFile string

func init() {
	modelValidateCmd.Flags().StringVarP(&modelValidateFile, "file", "f", "", "Path to artifact file (required)")
	if err := modelValidateCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	modelCmd.AddCommand(modelValidateCmd, modelFeaturesCmd)
	rootCmd.AddCommand(modelCmd)
}

func runModelValidate(cmd *cobra.Command, _ []string) error {
	artifact, err := modelstore.LoadFile(modelValidateFile)
	if err != nil {
		return err
	}
	if _, err := scoring.NewModelScorer(artifact); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: valid, version %s\n", artifact.Source, artifact.Version)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tFEATURE\tCOEFFICIENT\tMIN\tMAX")
	for _, kind := range models.ValidEntityKinds() {
		card := artifact.ScorecardFor(kind)
		if card == nil {
			fmt.Fprintf(w, "%s\t(no scorecard, falls back to rules)\t\t\t\n", kind)
			continue
		}
		fmt.Fprintf(w, "%s\tintercept\t%g\t\t\n", kind, card.Intercept)
		for _, term := range card.Terms {
			fmt.Fprintf(w, "%s\t%s\t%g\t%s\t%s\n", kind, term.Feature, term.Coefficient, bound(term.Min), bound(term.Max))
		}
	}
	return w.Flush()
}

func runModelFeatures(cmd *cobra.Command, _ []string) error {
	for _, kind := range models.ValidEntityKinds() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kind, strings.Join(scoring.ModelFeatureNames(kind), ", "))
	}
	return nil
}

func bound(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}
