package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"credit-risk-engine/internal/bootstrap"
	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/batch"
	"credit-risk-engine/internal/utils"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score every applicant in a CSV file",
	Long:  "Parses an applicant CSV, scores each row on a bounded worker pool and writes a JSON report with one result per row in input order.",
	RunE:  runBatch,
}

var (
	batchFile    string
	batchKind    string
	batchOutput  string
	batchWorkers int
	batchCheck   bool
)

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "Path to applicant CSV file (required)")
	batchCmd.Flags().StringVarP(&batchKind, "kind", "k", "", "Entity kind for files without a kind column")
	batchCmd.Flags().StringVarP(&batchOutput, "out", "o", "", "Path to output report JSON (default stdout)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent predictions (default BATCH_WORKERS)")
	batchCmd.Flags().BoolVar(&batchCheck, "check", false, "Validate the file structure without scoring")

	if err := batchCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	content, err := readInput(cmd, batchFile)
	if err != nil {
		return err
	}

	var defaultKind models.EntityKind
	if batchKind != "" {
		defaultKind = models.NormalizeEntityKind(batchKind)
		if !defaultKind.IsValid() {
			return fmt.Errorf("unsupported kind %q", batchKind)
		}
	}

	if batchCheck {
		return checkBatchFile(cmd, string(content), defaultKind)
	}

	rows, parseErrors := utils.NewCSVParser(defaultKind).ParseApplicants(string(content))
	if len(rows) == 0 {
		return fmt.Errorf("no applicant rows in %s: %v", batchFile, parseErrors)
	}

	engine, err := loadEngine(cmd.Context(), bootstrap.Options{})
	if err != nil {
		return err
	}
	defer engine.Close()

	workers := batchWorkers
	if workers <= 0 {
		workers = engine.Config.BatchWorkers
	}

	report, err := batch.NewRunner(engine.Dispatcher, workers).Run(cmd.Context(), "", rows)
	if err != nil {
		return err
	}
	for _, e := range parseErrors {
		report.ParseErrors = append(report.ParseErrors, e.Error())
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if batchOutput == "" {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	// Ensure output directory exists
	outputDir := filepath.Dir(batchOutput)
	if outputDir != "" && outputDir != "." {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(batchOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	s := report.Summary
	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d rows, %d scored, %d invalid, %d failed, average %.1f\n",
		s.BatchID, s.TotalRows, s.Scored, s.ValidationFailures, s.ScoringFailures, s.AverageScore)
	return nil
}

// checkBatchFile prints the structural check of a CSV and fails when the
// file could not be scored as a batch.
func checkBatchFile(cmd *cobra.Command, content string, defaultKind models.EntityKind) error {
	result := utils.CheckApplicantFile(content, defaultKind)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal check result: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
		return err
	}

	if !result.Valid {
		return fmt.Errorf("%s is not a valid applicant file", batchFile)
	}
	return nil
}
