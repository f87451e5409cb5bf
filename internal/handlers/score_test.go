package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"credit-risk-engine/internal/handlers"
	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/scoring"
	"credit-risk-engine/internal/services/ses"
)

func newDispatcher(t *testing.T) *scoring.Dispatcher {
	t.Helper()
	d, err := scoring.NewDispatcher(scoring.NewRuleScorer(), nil, scoring.DefaultPolicy(), scoring.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return d
}

func newMux(h *handlers.ScoreHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /api/score", h)
	mux.Handle("POST /api/score/{kind}/", h)
	return mux
}

type fakeAuditor struct {
	mu   sync.Mutex
	logs []*models.PredictionLog
	err  error
}

func (f *fakeAuditor) Create(_ context.Context, p *models.PredictionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, p)
	return f.err
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []ses.ReviewAlertParams
}

func (f *fakeAlerter) SendReviewAlert(_ context.Context, params ses.ReviewAlertParams) (*ses.SendEmailResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, params)
	return &ses.SendEmailResult{MessageID: "msg-1"}, nil
}

type failingPredictor struct{}

func (failingPredictor) Predict(kind models.EntityKind, _ map[string]any) (*models.ScoreResult, error) {
	return nil, &models.ScoringError{Kind: kind, Cause: errors.New("weights table corrupted")}
}

func TestScoreHandler_HTTP(t *testing.T) {
	mux := newMux(handlers.NewScoreHandler(newDispatcher(t)))

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantField  string
		wantReason string
	}{
		{
			name:       "envelope individual",
			path:       "/api/score",
			body:       `{"kind":"individual","features":{"yearly_income":60000,"existing_debt":12000}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "kind in path",
			path:       "/api/score/company/",
			body:       `{"revenue":"1500000","net_income":90000,"assets":400000,"liabilities":100000}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed json",
			path:       "/api/score/individual/",
			body:       `{"yearly_income":`,
			wantStatus: http.StatusBadRequest,
			wantField:  "body",
			wantReason: models.ReasonMalformed,
		},
		{
			name:       "empty body",
			path:       "/api/score",
			body:       ``,
			wantStatus: http.StatusBadRequest,
			wantField:  "body",
			wantReason: models.ReasonMalformed,
		},
		{
			name:       "missing required feature",
			path:       "/api/score/individual/",
			body:       `{"existing_debt":500}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "yearly_income",
			wantReason: models.ReasonRequired,
		},
		{
			name:       "kind alias in path",
			path:       "/api/score/person/",
			body:       `{"yearly_income":60000}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "kind",
			wantReason: models.ReasonUnsupported,
		},
		{
			name:       "kind alias in envelope",
			path:       "/api/score",
			body:       `{"kind":"business","features":{"revenue":1}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "kind",
			wantReason: models.ReasonUnsupported,
		},
		{
			name:       "unsupported kind",
			path:       "/api/score",
			body:       `{"kind":"trust","features":{"revenue":1}}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantField:  "kind",
			wantReason: models.ReasonUnsupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.NotEmpty(t, rec.Header().Get(handlers.HeaderRequestID))

			if tt.wantStatus == http.StatusOK {
				var result models.ScoreResult
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
				assert.GreaterOrEqual(t, result.Score, models.MinScore)
				assert.LessOrEqual(t, result.Score, models.MaxScore)
				assert.Equal(t, scoring.RuleVersion, result.ModelVersion)
				assert.NotEmpty(t, result.Explanation)
				return
			}

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, models.ErrorCodeValidation, resp.Error)
			assert.Equal(t, tt.wantField, resp.Field)
			assert.Equal(t, tt.wantReason, resp.Reason)
		})
	}
}

func TestScoreHandler_ScoringFailureHidesCause(t *testing.T) {
	mux := newMux(handlers.NewScoreHandler(failingPredictor{}, handlers.WithScoreLogger(zap.NewNop())))

	req := httptest.NewRequest(http.MethodPost, "/api/score/individual/", strings.NewReader(`{"yearly_income":1}`))
	req.Header.Set(handlers.HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get(handlers.HeaderRequestID))

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrorCodeScoringFailed, resp.Error)
	assert.Contains(t, resp.Detail, "req-42")
	assert.NotContains(t, rec.Body.String(), "weights table")
}

func TestScoreHandler_ScoringFailureNotRelogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mux := newMux(handlers.NewScoreHandler(failingPredictor{}, handlers.WithScoreLogger(zap.New(core))))

	req := httptest.NewRequest(http.MethodPost, "/api/score/individual/", strings.NewReader(`{"yearly_income":1}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Zero(t, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("Scoring failed").FilterLevelExact(zapcore.DebugLevel).Len())
}

func TestScoreHandler_AuditLog(t *testing.T) {
	auditor := &fakeAuditor{}
	h := handlers.NewScoreHandler(newDispatcher(t), handlers.WithAuditor(auditor))
	mux := newMux(h)

	req := httptest.NewRequest(http.MethodPost, "/api/score/individual/", strings.NewReader(`{"yearly_income":60000}`))
	req.Header.Set(handlers.HeaderRequestID, "req-audit")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// validation failures are never logged
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/score/individual/", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	h.Close()

	require.Len(t, auditor.logs, 1)
	entry := auditor.logs[0]
	assert.Equal(t, "req-audit", entry.RequestID)
	assert.Equal(t, models.KindIndividual, entry.Kind)
	assert.Equal(t, scoring.RuleVersion, entry.ModelVersion)
	assert.NotEmpty(t, entry.ID)
}

func TestScoreHandler_AuditFailureKeepsResponse(t *testing.T) {
	auditor := &fakeAuditor{err: errors.New("connection refused")}
	h := handlers.NewScoreHandler(newDispatcher(t), handlers.WithAuditor(auditor), handlers.WithScoreLogger(zap.NewNop()))

	status, payload := h.Score("req-1", "individual", []byte(`{"yearly_income":60000}`), false)

	assert.Equal(t, http.StatusOK, status)
	assert.IsType(t, &models.ScoreResult{}, payload)
	assert.Len(t, auditor.logs, 1)
}

func TestScoreHandler_ReviewAlerts(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		recipient string
		wantAlert bool
	}{
		{"below threshold", 1001, "risk@example.com", true},
		{"above threshold", 0, "risk@example.com", false},
		{"no recipient", 1001, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerter := &fakeAlerter{}
			h := handlers.NewScoreHandler(newDispatcher(t), handlers.WithReviewAlerts(alerter, tt.recipient, tt.threshold))

			status, _ := h.Score("req-7", "", []byte(`{"kind":"individual","features":{"yearly_income":60000,"existing_debt":12000}}`), true)
			require.Equal(t, http.StatusOK, status)
			h.Close()

			if !tt.wantAlert {
				assert.Empty(t, alerter.alerts)
				return
			}
			require.Len(t, alerter.alerts, 1)
			alert := alerter.alerts[0]
			assert.Equal(t, "req-7", alert.RequestID)
			assert.Equal(t, tt.recipient, alert.Recipient)
			assert.Equal(t, models.KindIndividual, alert.Kind)
			assert.LessOrEqual(t, len(alert.TopFactors), 3)
		})
	}
}

func TestScoreHandler_Lambda(t *testing.T) {
	h := handlers.NewScoreHandler(newDispatcher(t))

	t.Run("path parameter", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
			HTTPMethod:     http.MethodPost,
			Path:           "/api/score/individual/",
			PathParameters: map[string]string{"kind": "individual"},
			Headers:        map[string]string{"x-request-id": "lambda-1"},
			Body:           `{"yearly_income":"60,000","criminal_history":"no"}`,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "lambda-1", resp.Headers[handlers.HeaderRequestID])
		assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])

		var result models.ScoreResult
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &result))
		assert.Equal(t, scoring.RuleVersion, result.ModelVersion)
	})

	t.Run("kind from path", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Path:       "/api/score/company",
			Body:       `{"revenue":250000}`,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Headers[handlers.HeaderRequestID])
	})

	t.Run("envelope", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Path:       "/api/score",
			Body:       `{"kind":"company","features":{"revenue":-5}}`,
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		var errResp models.ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &errResp))
		assert.Equal(t, "revenue", errResp.Field)
		assert.Equal(t, models.ReasonNegative, errResp.Reason)
	})

	t.Run("preflight", func(t *testing.T) {
		resp, err := h.Handle(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodOptions})
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Body)
	})
}
