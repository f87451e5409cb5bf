// Package models defines the data structures for the credit risk scoring engine.
package models

import (
	"time"
)

// Published score scale. Higher scores mean lower credit risk.
const (
	MinScore = 0.0
	MaxScore = 1000.0
)

// Direction tells whether a factor raised or lowered the score.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// DirectionOf returns the direction for a signed contribution. Zero counts
// as positive.
func DirectionOf(value float64) Direction {
	if value < 0 {
		return DirectionNegative
	}
	return DirectionPositive
}

// Contribution is a named additive term produced by a scorer.
type Contribution struct {
	Factor string
	Value  float64
}

// Factor is one line of the public explanation.
type Factor struct {
	Factor       string    `json:"factor"`
	Contribution float64   `json:"contribution"`
	Direction    Direction `json:"direction"`
}

// ScoreResult is the success envelope. RawScore and Clamped are kept for
// monitoring and audit and are not part of the public JSON contract.
type ScoreResult struct {
	Score        float64  `json:"score"`
	ModelVersion string   `json:"model_version"`
	Explanation  []Factor `json:"explanation"`
	RawScore     float64  `json:"-"`
	Clamped      bool     `json:"-"`
}

// ScoreRequest is the transport-agnostic request envelope.
type ScoreRequest struct {
	Kind     string         `json:"kind"`
	Features map[string]any `json:"features"`
}

// PredictionLog is an audit record of one successful prediction.
type PredictionLog struct {
	ID           string         `json:"id" db:"id"`
	RequestID    string         `json:"request_id" db:"request_id"`
	Kind         EntityKind     `json:"kind" db:"kind"`
	Score        float64        `json:"score" db:"score"`
	RawScore     float64        `json:"raw_score" db:"raw_score"`
	ModelVersion string         `json:"model_version" db:"model_version"`
	Explanation  []Factor       `json:"explanation" db:"explanation"`
	Features     map[string]any `json:"features" db:"features"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
}

// ApplicantRow is one applicant read from a batch file.
type ApplicantRow struct {
	Line      int            `json:"line"`
	Reference string         `json:"reference,omitempty"`
	Kind      EntityKind     `json:"kind"`
	Features  map[string]any `json:"features"`
}

// BatchRowResult is the outcome for a single batch row: either Result or
// Error is set, never both.
type BatchRowResult struct {
	Line      int            `json:"line"`
	Reference string         `json:"reference,omitempty"`
	Kind      EntityKind     `json:"kind"`
	Result    *ScoreResult   `json:"result,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	BatchID               string  `json:"batch_id"`
	TotalRows             int     `json:"total_rows"`
	Scored                int     `json:"scored"`
	ValidationFailures    int     `json:"validation_failures"`
	ScoringFailures       int     `json:"scoring_failures"`
	AverageScore          float64 `json:"average_score"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}
