package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/batch"
	"credit-risk-engine/internal/services/database"
	s3service "credit-risk-engine/internal/services/s3"
	"credit-risk-engine/internal/utils"
)

// maxReportedErrors caps the errors echoed in the Lambda result.
const maxReportedErrors = 10

// ObjectStore reads and writes batch files. *s3service.Service satisfies it.
type ObjectStore interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	MoveObject(ctx context.Context, bucket, sourceKey, destKey string) error
}

// BulkAuditor persists prediction logs in bulk.
type BulkAuditor interface {
	BulkCreate(ctx context.Context, logs []*models.PredictionLog) (int, error)
}

// BatchProcessorHandler scores applicant CSV files uploaded to S3.
type BatchProcessorHandler struct {
	store        ObjectStore
	runner       *batch.Runner
	auditor      BulkAuditor
	resultPrefix string
	bucket       string
}

// BatchOption configures a BatchProcessorHandler.
type BatchOption func(*BatchProcessorHandler)

// WithSourceBucket ignores events from any other bucket. Result objects are
// written back to the source bucket, so a misrouted trigger would otherwise
// write reports into a foreign bucket.
func WithSourceBucket(bucket string) BatchOption {
	return func(h *BatchProcessorHandler) { h.bucket = bucket }
}

// NewBatchProcessorHandler creates a new batch processor handler. auditor
// may be nil.
func NewBatchProcessorHandler(store ObjectStore, predictor Predictor, workers int, resultPrefix string, auditor BulkAuditor, opts ...BatchOption) *BatchProcessorHandler {
	h := &BatchProcessorHandler{
		store:        store,
		runner:       batch.NewRunner(predictor, workers),
		auditor:      auditor,
		resultPrefix: resultPrefix,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// BatchProcessResult is the result of processing one uploaded file.
type BatchProcessResult struct {
	Message   string               `json:"message"`
	Key       string               `json:"key,omitempty"`
	ResultKey string               `json:"result_key,omitempty"`
	Summary   *models.BatchSummary `json:"summary,omitempty"`
	Errors    []string             `json:"errors,omitempty"`
}

// Handle processes S3 put events for uploaded applicant files.
func (h *BatchProcessorHandler) Handle(ctx context.Context, s3Event events.S3Event) ([]BatchProcessResult, error) {
	logger := utils.GetLogger()

	if len(s3Event.Records) == 0 {
		return []BatchProcessResult{{Message: "No records to process"}}, nil
	}

	results := make([]BatchProcessResult, 0, len(s3Event.Records))
	for _, record := range s3Event.Records {
		bucket := record.S3.Bucket.Name
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return results, fmt.Errorf("failed to decode S3 key: %w", err)
		}

		if h.bucket != "" && bucket != h.bucket {
			logger.Warn("Skipping object outside the batch bucket",
				utils.String("bucket", bucket),
				utils.String("key", key))
			results = append(results, BatchProcessResult{Message: "Skipped object outside the batch bucket", Key: key})
			continue
		}

		if !strings.EqualFold(path.Ext(key), ".csv") {
			logger.Info("Skipping non-CSV object",
				utils.String("bucket", bucket),
				utils.String("key", key))
			results = append(results, BatchProcessResult{Message: "Skipped non-CSV object", Key: key})
			continue
		}

		result, err := h.processFile(ctx, bucket, key)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}

	return results, nil
}

func (h *BatchProcessorHandler) processFile(ctx context.Context, bucket, key string) (BatchProcessResult, error) {
	logger := utils.GetLogger()

	logger.Info("Processing batch file",
		utils.String("bucket", bucket),
		utils.String("key", key))

	content, err := h.store.GetObject(ctx, bucket, key)
	if err != nil {
		return BatchProcessResult{}, fmt.Errorf("failed to download %s: %w", key, err)
	}

	batchID := batch.NewBatchID()
	rows, parseErrors := utils.NewCSVParser(KindFromKey(key)).ParseApplicants(string(content))

	report := &batch.Report{
		Summary: batch.Summarize(batchID, nil),
		Results: []models.BatchRowResult{},
	}
	if len(rows) > 0 {
		report, err = h.runner.Run(ctx, batchID, rows)
		if err != nil {
			return BatchProcessResult{}, err
		}
	}
	for _, e := range parseErrors {
		report.ParseErrors = append(report.ParseErrors, e.Error())
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return BatchProcessResult{}, fmt.Errorf("failed to encode report: %w", err)
	}

	resultKey := s3service.ResultKey(h.resultPrefix, key)
	if err := h.store.PutObject(ctx, bucket, resultKey, data, "application/json"); err != nil {
		return BatchProcessResult{}, fmt.Errorf("failed to upload report: %w", err)
	}

	if h.auditor != nil {
		h.audit(ctx, batchID, rows, report.Results)
	}

	// Archive processed file
	if err := h.store.MoveObject(ctx, bucket, key, s3service.ProcessedKey(key)); err != nil {
		logger.Warn("Failed to archive file", utils.Error(err))
	}

	message := "Batch scored successfully"
	if len(rows) == 0 {
		message = "No applicant rows found in file"
	}

	errs := report.ParseErrors
	if len(errs) > maxReportedErrors {
		errs = errs[:maxReportedErrors]
	}

	return BatchProcessResult{
		Message:   message,
		Key:       key,
		ResultKey: resultKey,
		Summary:   report.Summary,
		Errors:    errs,
	}, nil
}

// audit logs every scored row. results are in the same order as rows.
func (h *BatchProcessorHandler) audit(ctx context.Context, batchID string, rows []*models.ApplicantRow, results []models.BatchRowResult) {
	logs := make([]*models.PredictionLog, 0, len(results))
	for i, res := range results {
		if res.Result == nil {
			continue
		}
		requestID := fmt.Sprintf("%s:%d", batchID, res.Line)
		logs = append(logs, database.NewPredictionLog(requestID, res.Kind, rows[i].Features, res.Result))
	}
	if len(logs) == 0 {
		return
	}

	if _, err := h.auditor.BulkCreate(ctx, logs); err != nil {
		utils.GetLogger().Warn("Failed to write batch prediction logs",
			zap.String("batch_id", batchID),
			zap.Error(err),
		)
	}
}

// KindFromKey returns the entity kind named by a path segment of key, e.g.
// uploads/company/q3.csv. Files without one must carry a kind column.
func KindFromKey(key string) models.EntityKind {
	for _, segment := range strings.Split(path.Dir(key), "/") {
		if kind := models.NormalizeEntityKind(segment); kind.IsValid() {
			return kind
		}
	}
	return ""
}
