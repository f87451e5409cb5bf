package scoring_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/modelstore"
	"credit-risk-engine/internal/services/scoring"
)

const testArtifact = `
version: model/v2-test
individual:
  intercept: 300
  terms:
    - feature: log_yearly_income
      coefficient: 20
      max: 14
    - feature: debt_to_income
      coefficient: -80
      max: 4
    - feature: credit_history_score
      coefficient: 0.5
    - feature: criminal_history
      coefficient: -200
company:
  intercept: 350
  terms:
    - feature: profit_margin
      coefficient: 300
      min: -1
      max: 1
    - feature: solvency
      coefficient: 40
      max: 5
    - feature: tax_clear
      coefficient: 60
`

func loadTestArtifact(t *testing.T, doc string) *modelstore.Artifact {
	t.Helper()
	artifact, err := modelstore.Parse([]byte(doc))
	require.NoError(t, err)
	return artifact
}

func TestNewModelScorer(t *testing.T) {
	scorer, err := scoring.NewModelScorer(loadTestArtifact(t, testArtifact))
	require.NoError(t, err)

	assert.Equal(t, "model/v2-test", scorer.Version())
	assert.True(t, scorer.Supports(models.KindIndividual))
	assert.True(t, scorer.Supports(models.KindCompany))
}

func TestNewModelScorer_UnknownFeature(t *testing.T) {
	artifact := loadTestArtifact(t, `
company:
  intercept: 100
  terms:
    - feature: yearly_income
      coefficient: 1
`)

	_, err := scoring.NewModelScorer(artifact)
	require.Error(t, err)
	assert.True(t, errors.Is(err, modelstore.ErrInvalidArtifact))
	assert.Contains(t, err.Error(), "yearly_income")
}

func TestNewModelScorer_TermRange(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "raw amount without max",
			doc:     "individual:\n  intercept: 100\n  terms:\n    - {feature: yearly_income, coefficient: 2}\n",
			wantErr: `term "yearly_income" needs a max`,
		},
		{
			name:    "signed amount without min",
			doc:     "company:\n  intercept: 100\n  terms:\n    - {feature: net_income, coefficient: 0.001, max: 1000000}\n",
			wantErr: `term "net_income" needs a min`,
		},
		{
			name:    "term swing too large",
			doc:     "individual:\n  intercept: 100\n  terms:\n    - {feature: existing_debt, coefficient: 2, max: 1e300}\n",
			wantErr: `term "existing_debt" can move the score`,
		},
		{
			name:    "intercept too large",
			doc:     "individual:\n  intercept: 1e300\n  terms:\n    - {feature: criminal_history, coefficient: -1}\n",
			wantErr: "intercept",
		},
		{
			name: "clipped raw amount",
			doc:  "individual:\n  intercept: 100\n  terms:\n    - {feature: yearly_income, coefficient: 0.002, max: 200000}\n",
		},
		{
			name: "naturally bounded inputs",
			doc:  "individual:\n  intercept: 100\n  terms:\n    - {feature: credit_history_score, coefficient: 0.5}\n    - {feature: log_yearly_income, coefficient: 10}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scoring.NewModelScorer(loadTestArtifact(t, tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, modelstore.ErrInvalidArtifact))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewModelScorer_NilArtifact(t *testing.T) {
	_, err := scoring.NewModelScorer(nil)
	assert.Error(t, err)
}

func TestModelScorer_Score(t *testing.T) {
	scorer, err := scoring.NewModelScorer(loadTestArtifact(t, testArtifact))
	require.NoError(t, err)

	raw, contributions, err := scorer.Score(individual(models.IndividualFeatures{
		YearlyIncome:       50_000,
		ExistingDebt:       25_000,
		CreditHistoryScore: 700,
	}))
	require.NoError(t, err)

	c := contributionMap(contributions)
	assert.InDelta(t, 300, c[scoring.FactorBase], tolerance)
	assert.InDelta(t, -40, c["debt_to_income"], tolerance)
	assert.InDelta(t, 350, c["credit_history_score"], tolerance)
	assert.InDelta(t, 0, c["criminal_history"], tolerance)
	assert.Len(t, contributions, 5)
	assert.InDelta(t, sum(contributions), raw, tolerance)
}

func TestModelScorer_ClipsTerms(t *testing.T) {
	scorer, err := scoring.NewModelScorer(loadTestArtifact(t, testArtifact))
	require.NoError(t, err)

	_, contributions, err := scorer.Score(individual(models.IndividualFeatures{
		YearlyIncome: 1e12,
		ExistingDebt: 1e13,
	}))
	require.NoError(t, err)

	c := contributionMap(contributions)
	assert.InDelta(t, 20*14, c["log_yearly_income"], tolerance)
	assert.InDelta(t, -80*4, c["debt_to_income"], tolerance)
}

func TestModelScorer_Unavailable(t *testing.T) {
	individualOnly := loadTestArtifact(t, `
individual:
  intercept: 500
  terms:
    - feature: collateral_registered
      coefficient: 50
`)
	scorer, err := scoring.NewModelScorer(individualOnly)
	require.NoError(t, err)

	tests := []struct {
		name   string
		record models.FeatureRecord
	}{
		{"no scorecard for kind", models.NewCompanyRecord(models.CompanyFeatures{Revenue: 1000})},
		{"missing enrichment signal", individual(models.IndividualFeatures{YearlyIncome: 1000})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := scorer.Score(tt.record)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrModelUnavailable))

			var unavailable *models.ModelUnavailableError
			require.True(t, errors.As(err, &unavailable))
			assert.Equal(t, tt.record.Kind, unavailable.Kind)
		})
	}

	_, _, err = scorer.Score(individual(models.IndividualFeatures{
		YearlyIncome:         1000,
		CollateralRegistered: boolPtr(true),
	}))
	assert.NoError(t, err)
}

func TestModelScorer_NilIsUnavailable(t *testing.T) {
	var scorer *scoring.ModelScorer
	_, _, err := scorer.Score(individual(models.IndividualFeatures{YearlyIncome: 1}))
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}

func TestModelFeatureNames(t *testing.T) {
	names := scoring.ModelFeatureNames(models.KindCompany)
	assert.Equal(t, []string{
		"assets", "leverage", "liabilities", "log_revenue", "net_income",
		"profit_margin", "revenue", "solvency", "tax_clear",
	}, names)
	assert.Contains(t, scoring.ModelFeatureNames(models.KindIndividual), "collateral_coverage")
}
