// Package batch scores applicant files row by row on a bounded worker pool.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/utils"
)

// DefaultWorkers is used when no worker count is configured.
const DefaultWorkers = 4

// Predictor scores one applicant. *scoring.Dispatcher satisfies it.
type Predictor interface {
	Predict(kind models.EntityKind, raw map[string]any) (*models.ScoreResult, error)
}

// Report is the output document of a batch run.
type Report struct {
	Summary *models.BatchSummary    `json:"summary"`
	Results []models.BatchRowResult `json:"results"`
	// ParseErrors lists rows that could not be read from the file.
	ParseErrors []string `json:"parse_errors,omitempty"`
}

// Runner scores applicant rows concurrently.
type Runner struct {
	predictor Predictor
	workers   int
	logger    *zap.Logger
}

// NewRunner creates a runner with at most workers concurrent predictions.
func NewRunner(predictor Predictor, workers int) *Runner {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Runner{
		predictor: predictor,
		workers:   workers,
		logger:    utils.GetLogger(),
	}
}

// NewBatchID returns a fresh batch identifier.
func NewBatchID() string {
	return "batch-" + uuid.NewString()
}

// Run scores rows and returns one result per row in input order. Row level
// validation and scoring failures are reported in the row result; only
// cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, batchID string, rows []*models.ApplicantRow) (*Report, error) {
	startTime := time.Now()
	if batchID == "" {
		batchID = NewBatchID()
	}

	results := make([]models.BatchRowResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, row := range rows {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = r.scoreRow(batchID, row)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch %s cancelled: %w", batchID, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("batch %s cancelled: %w", batchID, err)
	}

	summary := Summarize(batchID, results)
	summary.ProcessingTimeSeconds = time.Since(startTime).Seconds()

	r.logger.Info("Batch scoring complete",
		zap.String("batch_id", batchID),
		zap.Int("rows", summary.TotalRows),
		zap.Int("scored", summary.Scored),
		zap.Int("validation_failures", summary.ValidationFailures),
		zap.Int("scoring_failures", summary.ScoringFailures),
		zap.Float64("processing_time_seconds", summary.ProcessingTimeSeconds),
	)

	return &Report{Summary: summary, Results: results}, nil
}

func (r *Runner) scoreRow(batchID string, row *models.ApplicantRow) models.BatchRowResult {
	out := models.BatchRowResult{
		Line:      row.Line,
		Reference: row.Reference,
		Kind:      row.Kind,
	}

	result, err := r.predictor.Predict(row.Kind, row.Features)
	if err != nil {
		resp := models.NewErrorResponse(err, fmt.Sprintf("%s line %d", batchID, row.Line))
		out.Error = &resp
		if !errors.Is(err, models.ErrValidation) {
			r.logger.Warn("Batch row failed to score",
				zap.String("batch_id", batchID),
				zap.Int("line", row.Line),
				zap.Error(err),
			)
		}
		return out
	}

	out.Result = result
	return out
}

// Summarize aggregates row results.
func Summarize(batchID string, results []models.BatchRowResult) *models.BatchSummary {
	summary := &models.BatchSummary{
		BatchID:   batchID,
		TotalRows: len(results),
	}

	total := 0.0
	for _, res := range results {
		switch {
		case res.Result != nil:
			summary.Scored++
			total += res.Result.Score
		case res.Error != nil && res.Error.Error == models.ErrorCodeValidation:
			summary.ValidationFailures++
		default:
			summary.ScoringFailures++
		}
	}

	if summary.Scored > 0 {
		summary.AverageScore = total / float64(summary.Scored)
	}
	return summary
}
