package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/scoring"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input    string
		expected scoring.Strategy
		wantErr  bool
	}{
		{"rule", scoring.StrategyRule, false},
		{" Model ", scoring.StrategyModel, false},
		{"MODEL", scoring.StrategyModel, false},
		{"", "", true},
		{"gbm", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := scoring.ParseStrategy(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPolicy(t *testing.T) {
	policy := scoring.DefaultPolicy()
	require.NoError(t, policy.Validate())

	assert.Equal(t, "policy/v1", policy.Version)
	assert.Equal(t, scoring.StrategyModel, policy.StrategyFor(models.KindIndividual))
	assert.Equal(t, scoring.StrategyModel, policy.StrategyFor(models.KindCompany))
	assert.Equal(t, scoring.StrategyRule, policy.StrategyFor(models.EntityKind("trust")))

	policy.Version = ""
	assert.Error(t, policy.Validate())
}
