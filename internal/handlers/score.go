// Package handlers provides the HTTP and Lambda transports of the credit risk engine.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/database"
	"credit-risk-engine/internal/services/ses"
	"credit-risk-engine/internal/utils"
)

// HeaderRequestID carries the caller's correlation id.
const HeaderRequestID = "X-Request-ID"

const (
	maxBodyBytes      = 1 << 20
	sideEffectTimeout = 10 * time.Second
	alertTopFactors   = 3
)

// Predictor scores one applicant. *scoring.Dispatcher satisfies it.
type Predictor interface {
	Predict(kind models.EntityKind, raw map[string]any) (*models.ScoreResult, error)
}

// Auditor persists prediction logs.
type Auditor interface {
	Create(ctx context.Context, p *models.PredictionLog) error
}

// Alerter sends manual review alerts.
type Alerter interface {
	SendReviewAlert(ctx context.Context, params ses.ReviewAlertParams) (*ses.SendEmailResult, error)
}

// ScoreHandler handles score requests.
type ScoreHandler struct {
	predictor Predictor
	auditor   Auditor
	alerter   Alerter
	recipient string
	threshold float64
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// ScoreOption configures a ScoreHandler.
type ScoreOption func(*ScoreHandler)

// WithAuditor records every successful prediction.
func WithAuditor(auditor Auditor) ScoreOption {
	return func(h *ScoreHandler) { h.auditor = auditor }
}

// WithReviewAlerts emails recipient whenever a score falls below threshold.
func WithReviewAlerts(alerter Alerter, recipient string, threshold float64) ScoreOption {
	return func(h *ScoreHandler) {
		h.alerter = alerter
		h.recipient = recipient
		h.threshold = threshold
	}
}

// WithScoreLogger overrides the package logger.
func WithScoreLogger(logger *zap.Logger) ScoreOption {
	return func(h *ScoreHandler) { h.logger = logger }
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(predictor Predictor, opts ...ScoreOption) *ScoreHandler {
	h := &ScoreHandler{
		predictor: predictor,
		logger:    utils.GetLogger(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Score decodes body and scores it. An empty kind means body is the
// {kind, features} envelope; otherwise body is the bare feature object.
// It returns the HTTP status and the response payload.
func (h *ScoreHandler) Score(requestID, kind string, body []byte, async bool) (int, any) {
	raw, kindValue, err := decodeScoreBody(kind, body)
	if err != nil {
		h.logger.Debug("Malformed score request",
			utils.RequestID(requestID),
			zap.Error(err),
		)
		return http.StatusBadRequest, models.ErrorResponse{
			Error:  models.ErrorCodeValidation,
			Field:  "body",
			Reason: models.ReasonMalformed,
		}
	}

	entityKind := models.ParseEntityKind(kindValue)
	result, err := h.predictor.Predict(entityKind, raw)
	if err != nil {
		resp := models.NewErrorResponse(err, requestID)
		if errors.Is(err, models.ErrValidation) {
			return http.StatusUnprocessableEntity, resp
		}
		// The dispatcher already logged the cause at error level.
		h.logger.Debug("Scoring failed",
			utils.RequestID(requestID),
			zap.String("kind", string(entityKind)),
			zap.Error(err),
		)
		return http.StatusInternalServerError, resp
	}

	h.afterScore(requestID, entityKind, raw, result, async)
	return http.StatusOK, result
}

func decodeScoreBody(kind string, body []byte) (map[string]any, string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	if kind != "" {
		var features map[string]any
		if err := dec.Decode(&features); err != nil {
			return nil, "", err
		}
		return features, kind, nil
	}

	var req models.ScoreRequest
	if err := dec.Decode(&req); err != nil {
		return nil, "", err
	}
	return req.Features, req.Kind, nil
}

// afterScore writes the prediction log and the review alert. Neither can
// change the response already computed.
func (h *ScoreHandler) afterScore(requestID string, kind models.EntityKind, raw map[string]any, result *models.ScoreResult, async bool) {
	alert := h.alerter != nil && h.recipient != "" && result.Score < h.threshold
	if h.auditor == nil && !alert {
		return
	}

	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()

		if h.auditor != nil {
			entry := database.NewPredictionLog(requestID, kind, raw, result)
			if err := h.auditor.Create(ctx, entry); err != nil {
				h.logger.Warn("Failed to write prediction log",
					utils.RequestID(requestID),
					zap.Error(err),
				)
			}
		}

		if alert {
			h.sendAlert(ctx, requestID, kind, result)
		}
	}

	if !async {
		run()
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		run()
	}()
}

func (h *ScoreHandler) sendAlert(ctx context.Context, requestID string, kind models.EntityKind, result *models.ScoreResult) {
	top := result.Explanation
	if len(top) > alertTopFactors {
		top = top[:alertTopFactors]
	}

	sent, err := h.alerter.SendReviewAlert(ctx, ses.ReviewAlertParams{
		Recipient:    h.recipient,
		RequestID:    requestID,
		Kind:         kind,
		Score:        result.Score,
		Threshold:    h.threshold,
		ModelVersion: result.ModelVersion,
		TopFactors:   top,
	})
	if err != nil {
		h.logger.Warn("Failed to send review alert",
			utils.RequestID(requestID),
			zap.Error(err),
		)
		return
	}

	h.logger.Info("Review alert sent",
		utils.RequestID(requestID),
		zap.String("message_id", sent.MessageID),
		zap.Float64("score", result.Score),
	)
}

// ServeHTTP handles POST /api/score and POST /api/score/{kind}/.
func (h *ScoreHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, requestID)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{
			Error:  models.ErrorCodeValidation,
			Field:  "body",
			Reason: models.ReasonMalformed,
		})
		return
	}

	status, payload := h.Score(requestID, r.PathValue("kind"), body, true)
	writeJSON(w, status, payload)
}

// Handle processes API Gateway score requests. Side effects complete before
// the function returns since the Lambda runtime freezes after the response.
func (h *ScoreHandler) Handle(_ context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := headerValue(request.Headers, HeaderRequestID)
	if requestID == "" {
		requestID = request.RequestContext.RequestID
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	kind := request.PathParameters["kind"]
	if kind == "" {
		kind = strings.Trim(strings.TrimPrefix(request.Path, "/api/score"), "/")
	}

	headers := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type, " + HeaderRequestID,
		"Content-Type":                 "application/json",
		HeaderRequestID:                requestID,
	}

	if request.HTTPMethod == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusOK, Headers: headers}, nil
	}

	status, payload := h.Score(requestID, kind, []byte(request.Body), false)
	body, err := json.Marshal(payload)
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// Close waits for in-flight audit writes and alerts.
func (h *ScoreHandler) Close() {
	h.wg.Wait()
}

// headerValue looks a header up case-insensitively; API Gateway forwards
// headers in whatever case the client sent.
func headerValue(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
