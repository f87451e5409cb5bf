package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/metrics"
)

// counterValue gathers the registry and returns the counter for the given
// labels, or 0 when the series does not exist yet.
func counterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, pair := range m.GetLabel() {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestObserveClamp(t *testing.T) {
	tests := []struct {
		name  string
		raw   float64
		bound string
	}{
		{"below range", -50, "lower"},
		{"above range", 2000, "upper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := map[string]string{"kind": "clamp-test", "bound": tt.bound}
			before := counterValue(t, "credit_score_clamped_total", labels)

			metrics.ObserveClamp("clamp-test", tt.raw)

			assert.Equal(t, before+1, counterValue(t, "credit_score_clamped_total", labels))
		})
	}
}

func TestObserveSuccess(t *testing.T) {
	labels := map[string]string{"kind": "success-test", "model_version": "rule/v1"}
	before := counterValue(t, "credit_score_requests_total", labels)

	metrics.ObserveSuccess("success-test", "rule/v1", 640, 2*time.Millisecond)

	assert.Equal(t, before+1, counterValue(t, "credit_score_requests_total", labels))
}

func TestHandler(t *testing.T) {
	metrics.ObserveClamp("handler-test", 1500)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `credit_score_clamped_total{bound="upper",kind="handler-test"} 1`)
}
