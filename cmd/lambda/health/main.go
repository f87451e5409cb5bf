// Health Check Lambda entry point
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

	engine, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		panic("Failed to build scoring engine: " + err.Error())
	}
	defer engine.Close()

	var db handlers.Pinger
	if engine.DB != nil {
		db = engine.DB
	}

	// Create handler
	handler := handlers.NewHealthHandler(handlers.HealthInfo{
		Stage:         cfg.Stage,
		Version:       cfg.ServiceVersion,
		PolicyVersion: cfg.PolicyVersion,
		ModelVersion:  engine.Dispatcher.ModelVersion(),
	}, db)

	// Start Lambda
	lambda.Start(handler.Handle)
}
