// Score Lambda entry point
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

	engine, err := bootstrap.Build(context.Background(), cfg, bootstrap.Options{Alerts: true})
	if err != nil {
		panic("Failed to build scoring engine: " + err.Error())
	}
	defer engine.Close()

	var opts []handlers.ScoreOption
	if engine.Predictions != nil {
		opts = append(opts, handlers.WithAuditor(engine.Predictions))
	}
	if engine.Alerts != nil {
		opts = append(opts, handlers.WithReviewAlerts(engine.Alerts, cfg.ReviewAlertRecipient, cfg.ReviewAlertThreshold))
	}

	// Create handler
	handler := handlers.NewScoreHandler(engine.Dispatcher, opts...)

	// Start Lambda
	lambda.Start(handler.Handle)
}
