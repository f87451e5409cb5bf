// Prediction Log Cleanup Lambda entry point, run on a schedule
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/handlers"
	"credit-risk-engine/internal/services/database"
	"credit-risk-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel, cfg.LogFormat)
	defer utils.Sync()

	db, err := database.New(context.Background(), cfg)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}
	defer db.Close()

	if _, err := db.Migrate(); err != nil {
		panic("Failed to migrate schema: " + err.Error())
	}
	repo := database.NewPredictionRepository(db)

	// Create handler
	handler := handlers.NewLogCleanupHandler(repo, cfg.PredictionLogRetentionDays)

	// Start Lambda
	lambda.Start(handler.Handle)
}
