// Package bootstrap builds the scoring engine and its optional collaborators
// from configuration. Every binary under cmd/ starts here.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"credit-risk-engine/internal/config"
	"credit-risk-engine/internal/services/database"
	"credit-risk-engine/internal/services/modelstore"
	s3service "credit-risk-engine/internal/services/s3"
	"credit-risk-engine/internal/services/scoring"
	"credit-risk-engine/internal/services/ses"
	"credit-risk-engine/internal/utils"
)

// Engine is the process-wide set of long lived dependencies. Everything in
// it is created once at startup and only read afterwards.
type Engine struct {
	Config      *config.Config
	Dispatcher  *scoring.Dispatcher
	Artifact    *modelstore.Artifact
	DB          *database.DB
	Predictions *database.PredictionRepository
	S3          *s3service.Service
	Alerts      *ses.Service
}

// Options selects which optional collaborators to create.
type Options struct {
	// Storage forces an S3 client even when no artifact lives in S3.
	Storage bool
	// Audit opens the prediction log even when PREDICTION_LOG_ENABLED is off.
	Audit bool
	// Alerts creates the SES client when review alerts are configured.
	Alerts bool
}

// PolicyFromConfig builds the scorer selection policy.
func PolicyFromConfig(cfg *config.Config) (scoring.Policy, error) {
	individual, err := scoring.ParseStrategy(cfg.IndividualStrategy)
	if err != nil {
		return scoring.Policy{}, fmt.Errorf("individual strategy: %w", err)
	}
	company, err := scoring.ParseStrategy(cfg.CompanyStrategy)
	if err != nil {
		return scoring.Policy{}, fmt.Errorf("company strategy: %w", err)
	}

	policy := scoring.Policy{
		Version:    cfg.PolicyVersion,
		Individual: individual,
		Company:    company,
	}
	return policy, policy.Validate()
}

// LoadArtifact loads the configured model artifact. It returns nil without
// error when no artifact is configured.
func LoadArtifact(ctx context.Context, cfg *config.Config, fetcher modelstore.ObjectFetcher) (*modelstore.Artifact, error) {
	switch {
	case cfg.ModelFromS3():
		if fetcher == nil {
			return nil, fmt.Errorf("model artifact is in S3 but no S3 client is configured")
		}
		return modelstore.LoadS3(ctx, fetcher, cfg.ModelArtifactBucket, cfg.ModelArtifactKey)
	case cfg.ModelArtifactPath != "":
		return modelstore.LoadFile(cfg.ModelArtifactPath)
	default:
		return nil, nil
	}
}

// NewDispatcher builds the dispatcher for cfg. An artifact that cannot be
// loaded is logged and the engine runs on the rule scorer; the model
// strategy then falls back on every request.
func NewDispatcher(ctx context.Context, cfg *config.Config, fetcher modelstore.ObjectFetcher, logger *zap.Logger) (*scoring.Dispatcher, *modelstore.Artifact, error) {
	policy, err := PolicyFromConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	var model scoring.Scorer
	artifact, err := LoadArtifact(ctx, cfg, fetcher)
	switch {
	case err != nil:
		logger.Error("Model artifact unavailable, scoring with rules only", zap.Error(err))
		artifact = nil
	case artifact == nil:
		logger.Info("No model artifact configured, scoring with rules only")
	default:
		modelScorer, err := scoring.NewModelScorer(artifact)
		if err != nil {
			logger.Error("Model artifact rejected, scoring with rules only",
				zap.String("source", artifact.Source),
				zap.Error(err),
			)
			artifact = nil
			break
		}
		model = modelScorer
		logger.Info("Loaded model artifact",
			zap.String("source", artifact.Source),
			zap.String("model_version", artifact.Version),
		)
	}

	dispatcher, err := scoring.NewDispatcher(scoring.NewRuleScorer(), model, policy, scoring.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return dispatcher, artifact, nil
}

// Build creates the engine and the collaborators selected by opts.
// Optional collaborators that fail to start are logged and left nil.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	logger := utils.GetLogger()
	engine := &Engine{Config: cfg}

	if opts.Storage || cfg.ModelFromS3() {
		svc, err := s3service.NewService(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 service: %w", err)
		}
		engine.S3 = svc
	}

	var fetcher modelstore.ObjectFetcher
	if engine.S3 != nil {
		fetcher = engine.S3
	}
	dispatcher, artifact, err := NewDispatcher(ctx, cfg, fetcher, logger)
	if err != nil {
		return nil, err
	}
	engine.Dispatcher = dispatcher
	engine.Artifact = artifact

	if opts.Audit || cfg.PredictionLogEnabled {
		db, err := database.New(ctx, cfg)
		if err != nil {
			logger.Warn("Prediction log unavailable", zap.Error(err))
		} else {
			engine.DB = db
			engine.Predictions = database.NewPredictionRepository(db)
			if applied, err := db.Migrate(); err != nil {
				logger.Warn("Failed to migrate prediction schema", zap.Error(err))
			} else if applied > 0 {
				logger.Info("Prediction schema migrated", zap.Int("applied", applied))
			}
		}
	}

	if opts.Alerts && cfg.ReviewAlertsEnabled() {
		svc, err := ses.NewService(ctx, cfg.AWSRegion, cfg.SESSenderEmail)
		if err != nil {
			logger.Warn("Review alerts unavailable", zap.Error(err))
		} else {
			engine.Alerts = svc
		}
	}

	logger.Info("Scoring engine ready",
		zap.String("policy_version", cfg.PolicyVersion),
		zap.String("model_version", dispatcher.ModelVersion()),
		zap.Bool("prediction_log", engine.Predictions != nil),
		zap.Bool("review_alerts", engine.Alerts != nil),
	)

	return engine, nil
}

// Close releases the engine's connections.
func (e *Engine) Close() {
	if e.DB != nil {
		e.DB.Close()
	}
}
