// Batch Score Lambda entry point, triggered by CSV uploads to the batch bucket
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"credit-risk-engine/internal/bootstrap"
	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/handlers"
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

	engine, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Storage: true})
	if err != nil {
		panic("Failed to build scoring engine: " + err.Error())
	}
	defer engine.Close()

	var auditor handlers.BulkAuditor
	if engine.Predictions != nil {
		auditor = engine.Predictions
	}

	// Create handler
	handler := handlers.NewBatchProcessorHandler(engine.S3, engine.Dispatcher, cfg.BatchWorkers, cfg.ResultPrefix, auditor,
		handlers.WithSourceBucket(cfg.BatchBucket))

	// Start Lambda
	lambda.Start(handler.Handle)
}
