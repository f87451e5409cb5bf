package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"credit-risk-engine/internal/bootstrap"
	"credit-risk-engine/internal/handlers"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one applicant from a JSON file",
	Long: `Scores a single applicant. With --kind the file holds the bare feature
object; without it the file holds a {"kind": ..., "features": {...}} envelope.
Use --file - to read from stdin.`,
	RunE: runScore,
}

var (
	scoreKind string
	scoreFile string
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreKind, "kind", "k", "", "Entity kind: individual or company")
	scoreCmd.Flags().StringVarP(&scoreFile, "file", "f", "", "Path to applicant JSON file (required)")

	if err := scoreCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	body, err := readInput(cmd, scoreFile)
	if err != nil {
		return err
	}

	engine, err := loadEngine(cmd.Context(), bootstrap.Options{})
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []handlers.ScoreOption
	if engine.Predictions != nil {
		opts = append(opts, handlers.WithAuditor(engine.Predictions))
	}
	handler := handlers.NewScoreHandler(engine.Dispatcher, opts...)

	status, payload := handler.Score("riskctl-"+uuid.NewString(), scoreKind, body, false)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if status != http.StatusOK {
		return fmt.Errorf("scoring rejected (%d %s)", status, http.StatusText(status))
	}
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
