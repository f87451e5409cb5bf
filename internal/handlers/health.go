package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// Pinger checks a backing store. *database.DB satisfies it.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// HealthInfo describes the running engine.
type HealthInfo struct {
	Stage         string
	Version       string
	PolicyVersion string
	ModelVersion  string
}

// HealthHandler handles health check requests.
type HealthHandler struct {
	db   Pinger
	info HealthInfo
}

// NewHealthHandler creates a new health handler. db may be nil when the
// prediction log is disabled.
func NewHealthHandler(info HealthInfo, db Pinger) *HealthHandler {
	return &HealthHandler{db: db, info: info}
}

// HealthResponse is the response structure for health checks.
type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	Stage         string `json:"stage"`
	PolicyVersion string `json:"policy_version"`
	ModelVersion  string `json:"model_version,omitempty"`
	Database      string `json:"database,omitempty"`
}

func (h *HealthHandler) check(ctx context.Context) (int, HealthResponse) {
	response := HealthResponse{
		Status:        "healthy",
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Service:       "credit-risk-engine",
		Version:       h.info.Version,
		Stage:         h.info.Stage,
		PolicyVersion: h.info.PolicyVersion,
		ModelVersion:  h.info.ModelVersion,
	}

	// Check database connectivity
	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			response.Database = "disconnected"
			response.Status = "degraded"
		} else {
			response.Database = "connected"
		}
	} else {
		response.Database = "not configured"
	}

	statusCode := http.StatusOK
	if response.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return statusCode, response
}

// Handle processes health check requests.
func (h *HealthHandler) Handle(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := map[string]string{
		"Access-Control-Allow-Origin": "*",
		"Content-Type":                "application/json",
	}

	statusCode, response := h.check(ctx)
	body, _ := json.Marshal(response)

	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

// ServeHTTP handles GET /health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	statusCode, response := h.check(r.Context())
	writeJSON(w, statusCode, response)
}
