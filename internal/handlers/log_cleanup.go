package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"credit-risk-engine/internal/utils"
)

// Cleaner deletes prediction logs. *database.PredictionRepository satisfies it.
type Cleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogCleanupHandler enforces the prediction log retention window.
type LogCleanupHandler struct {
	store         Cleaner
	retentionDays int
	now           func() time.Time
}

// NewLogCleanupHandler creates a new cleanup handler.
func NewLogCleanupHandler(store Cleaner, retentionDays int) *LogCleanupHandler {
	return &LogCleanupHandler{
		store:         store,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// LogCleanupResult is the result of a cleanup run.
type LogCleanupResult struct {
	Message string `json:"message"`
	Cutoff  string `json:"cutoff"`
	Deleted int64  `json:"deleted"`
}

// Handle processes the scheduled cleanup event.
func (h *LogCleanupHandler) Handle(ctx context.Context, event events.CloudWatchEvent) (LogCleanupResult, error) {
	logger := utils.GetLogger()

	if h.retentionDays <= 0 {
		return LogCleanupResult{}, fmt.Errorf("retention must be at least one day, got %d", h.retentionDays)
	}

	cutoff := h.now().UTC().AddDate(0, 0, -h.retentionDays)
	deleted, err := h.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		logger.Error("Failed to delete prediction logs", utils.Error(err))
		return LogCleanupResult{}, fmt.Errorf("failed to delete prediction logs: %w", err)
	}

	logger.Info("Prediction logs cleaned up",
		utils.String("event_id", event.ID),
		utils.Int64("deleted", deleted),
		utils.String("cutoff", cutoff.Format(time.RFC3339)))

	return LogCleanupResult{
		Message: "Prediction logs cleaned up",
		Cutoff:  cutoff.Format(time.RFC3339),
		Deleted: deleted,
	}, nil
}
