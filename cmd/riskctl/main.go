// Package main provides riskctl, the operator CLI of the credit risk engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"credit-risk-engine/internal/bootstrap"
	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/utils"
)

var modelPath string

var rootCmd = &cobra.Command{
	Use:          "riskctl",
	Short:        "Credit risk engine operator tool",
	Long:         "riskctl scores applicants offline, runs CSV batches, validates model artifacts and maintains the prediction log.",
	SilenceUsage: true,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		utils.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Path to a model artifact (overrides MODEL_ARTIFACT_PATH and S3)")
}

// loadConfig reads the environment and applies the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modelPath != "" {
		cfg.ModelArtifactPath = modelPath
		cfg.ModelArtifactBucket = ""
		cfg.ModelArtifactKey = ""
	}

	if err := utils.InitLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func loadEngine(ctx context.Context, opts bootstrap.Options) (*bootstrap.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, cfg, opts)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
