package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"credit-risk-engine/internal/models"
)

// PredictionRepository handles prediction log database operations.
type PredictionRepository struct {
	db *DB
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db *DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

const insertPrediction = `
	INSERT INTO prediction_logs (
		id, request_id, kind, score, raw_score, model_version,
		explanation, features, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// NewPredictionLog builds an audit record for a successful prediction.
func NewPredictionLog(requestID string, kind models.EntityKind, features map[string]any, result *models.ScoreResult) *models.PredictionLog {
	return &models.PredictionLog{
		ID:           uuid.NewString(),
		RequestID:    requestID,
		Kind:         kind,
		Score:        result.Score,
		RawScore:     result.RawScore,
		ModelVersion: result.ModelVersion,
		Explanation:  result.Explanation,
		Features:     features,
		CreatedAt:    time.Now().UTC(),
	}
}

func predictionArgs(p *models.PredictionLog) ([]interface{}, error) {
	explanation, err := json.Marshal(p.Explanation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode explanation: %w", err)
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to encode features: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	return []interface{}{
		p.ID,
		p.RequestID,
		string(p.Kind),
		p.Score,
		p.RawScore,
		p.ModelVersion,
		explanation,
		features,
		p.CreatedAt,
	}, nil
}

// Create inserts a prediction log entry.
func (r *PredictionRepository) Create(ctx context.Context, p *models.PredictionLog) error {
	args, err := predictionArgs(p)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, insertPrediction, args...); err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	return nil
}

// BulkCreate inserts multiple prediction log entries in one transaction.
func (r *PredictionRepository) BulkCreate(ctx context.Context, logs []*models.PredictionLog) (int, error) {
	if len(logs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, p := range logs {
			args, err := predictionArgs(p)
			if err != nil {
				return err
			}
			batch.Queue(insertPrediction, args...)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range logs {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert prediction log: %w", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetByRequestID returns the log entries written for a request.
func (r *PredictionRepository) GetByRequestID(ctx context.Context, requestID string) ([]*models.PredictionLog, error) {
	query := `
		SELECT id, request_id, kind, score, raw_score, model_version,
			explanation, features, created_at
		FROM prediction_logs
		WHERE request_id = $1
		ORDER BY created_at`

	return r.query(ctx, query, requestID)
}

// ListRecent returns the most recent log entries, newest first.
func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]*models.PredictionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, request_id, kind, score, raw_score, model_version,
			explanation, features, created_at
		FROM prediction_logs
		ORDER BY created_at DESC
		LIMIT $1`

	return r.query(ctx, query, limit)
}

func (r *PredictionRepository) query(ctx context.Context, query string, args ...any) ([]*models.PredictionLog, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.PredictionLog
	for rows.Next() {
		var (
			p           models.PredictionLog
			kind        string
			explanation []byte
			features    []byte
		)
		if err := rows.Scan(
			&p.ID, &p.RequestID, &kind, &p.Score, &p.RawScore, &p.ModelVersion,
			&explanation, &features, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction log: %w", err)
		}
		p.Kind = models.EntityKind(kind)

		if err := json.Unmarshal(explanation, &p.Explanation); err != nil {
			return nil, fmt.Errorf("failed to decode explanation: %w", err)
		}
		if err := json.Unmarshal(features, &p.Features); err != nil {
			return nil, fmt.Errorf("failed to decode features: %w", err)
		}
		logs = append(logs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction logs: %w", err)
	}
	return logs, nil
}

// DeleteOlderThan removes entries created before cutoff and returns how many
// rows were deleted.
func (r *PredictionRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := r.db.ExecContext(ctx, `DELETE FROM prediction_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete prediction logs: %w", err)
	}
	return deleted, nil
}

// CountByModelVersion returns the number of logged predictions per scorer.
func (r *PredictionRepository) CountByModelVersion(ctx context.Context, since time.Time) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT model_version, COUNT(*)
		FROM prediction_logs
		WHERE created_at >= $1
		GROUP BY model_version`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count prediction logs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var version string
		var count int64
		if err := rows.Scan(&version, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[version] = count
	}
	return counts, rows.Err()
}
