package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"credit-risk-engine/internal/metrics"
	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/utils"
)

// Dispatcher routes a request to a scorer per the policy, clamps the raw
// score into the published range and builds the explanation. It keeps no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	rules  Scorer
	model  Scorer
	policy Policy
	logger *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the global logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher. rules is mandatory; model may be nil,
// in which case every model strategy falls back to rules.
func NewDispatcher(rules Scorer, model Scorer, policy Policy, opts ...Option) (*Dispatcher, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule scorer is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		rules:  rules,
		model:  model,
		policy: policy,
		logger: utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Policy returns the active selection policy.
func (d *Dispatcher) Policy() Policy {
	return d.policy
}

// ModelVersion returns the version of the loaded model, or "" when the
// engine runs on rules only.
func (d *Dispatcher) ModelVersion() string {
	if d.model == nil {
		return ""
	}
	return d.model.Version()
}

// Predict validates raw features for kind and scores them. It returns either
// a result or a *models.ValidationError or *models.ScoringError, never both.
func (d *Dispatcher) Predict(kind models.EntityKind, raw map[string]any) (result *models.ScoreResult, err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Scorer panicked",
				zap.String("kind", string(kind)),
				zap.Any("panic", r),
			)
			metrics.FailuresTotal.WithLabelValues(string(kind)).Inc()
			result = nil
			err = &models.ScoringError{Kind: kind, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()

	record, err := models.NormalizeFeatures(kind, raw)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			metrics.ValidationFailuresTotal.WithLabelValues(verr.Field, verr.Reason).Inc()
		}
		return nil, err
	}

	scorer, rawScore, contributions, err := d.score(record)
	if err != nil {
		return nil, d.fail(kind, err)
	}

	if !finite(rawScore) {
		return nil, d.fail(kind, fmt.Errorf("%s produced non-finite score %v", scorer.Version(), rawScore))
	}
	for _, c := range contributions {
		if !finite(c.Value) {
			return nil, d.fail(kind, fmt.Errorf("%s produced non-finite contribution %q", scorer.Version(), c.Factor))
		}
	}

	score := clampFloat(rawScore, models.MinScore, models.MaxScore)
	clamped := score != rawScore
	if clamped {
		metrics.ObserveClamp(string(kind), rawScore)
		d.logger.Debug("Raw score clamped",
			zap.String("kind", string(kind)),
			zap.Float64("raw_score", rawScore),
			zap.Float64("score", score),
		)
	}

	result = &models.ScoreResult{
		Score:        score,
		ModelVersion: scorer.Version(),
		Explanation:  BuildExplanation(contributions),
		RawScore:     rawScore,
		Clamped:      clamped,
	}

	metrics.ObserveSuccess(string(kind), result.ModelVersion, score, time.Since(start))
	d.logger.Debug("Prediction scored",
		zap.String("kind", string(kind)),
		zap.String("model_version", result.ModelVersion),
		zap.Float64("score", score),
		zap.Bool("clamped", clamped),
	)
	return result, nil
}

// score runs the scorer selected by the policy. A model that reports itself
// unavailable is replaced by the rule scorer; any other error is returned.
func (d *Dispatcher) score(record models.FeatureRecord) (Scorer, float64, []models.Contribution, error) {
	if d.policy.StrategyFor(record.Kind) == StrategyModel && d.model != nil {
		raw, contributions, err := d.model.Score(record)
		if err == nil {
			return d.model, raw, contributions, nil
		}
		if !errors.Is(err, models.ErrModelUnavailable) {
			return d.model, 0, nil, err
		}

		metrics.ModelFallbacksTotal.WithLabelValues(string(record.Kind)).Inc()
		d.logger.Debug("Model unavailable, using rules",
			zap.String("kind", string(record.Kind)),
			zap.Error(err),
		)
	} else if d.policy.StrategyFor(record.Kind) == StrategyModel {
		metrics.ModelFallbacksTotal.WithLabelValues(string(record.Kind)).Inc()
	}

	raw, contributions, err := d.rules.Score(record)
	return d.rules, raw, contributions, err
}

func (d *Dispatcher) fail(kind models.EntityKind, cause error) error {
	metrics.FailuresTotal.WithLabelValues(string(kind)).Inc()
	d.logger.Error("Scoring failed",
		zap.String("kind", string(kind)),
		zap.Error(cause),
	)
	return &models.ScoringError{Kind: kind, Cause: cause}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
