package utils_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/utils"
)

func TestCSVParser_ValidFile(t *testing.T) {
	csvContent := `reference,kind,yearly_income,existing_debt,revenue,net_income
APP-1,individual,60000,12000,,
APP-2,company,,,1500000,-20000`

	parser := utils.NewCSVParser("")
	rows, errs := parser.ParseApplicants(csvContent)

	require.Empty(t, errs, "Expected no parse errors")
	require.Len(t, rows, 2, "Expected 2 rows")

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "APP-1", rows[0].Reference)
	assert.Equal(t, models.KindIndividual, rows[0].Kind)
	assert.Equal(t, map[string]any{"yearly_income": "60000", "existing_debt": "12000"}, rows[0].Features)

	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, models.KindCompany, rows[1].Kind)
	assert.Equal(t, map[string]any{"revenue": "1500000", "net_income": "-20000"}, rows[1].Features)
}

func TestCSVParser_ColumnAliases(t *testing.T) {
	csvContent := `Applicant_ID,Type,Monthly Income,Debt,Credit Score,Criminal
A1,person,"5,000",300,710,no`

	parser := utils.NewCSVParser("")
	rows, errs := parser.ParseApplicants(csvContent)

	require.Empty(t, errs)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "A1", row.Reference)
	assert.Equal(t, models.KindIndividual, row.Kind)
	assert.Equal(t, 60000.0, row.Features["yearly_income"])
	assert.Equal(t, "300", row.Features["existing_debt"])
	assert.Equal(t, "710", row.Features["credit_history_score"])
	assert.Equal(t, "no", row.Features["criminal_history"])
}

func TestCSVParser_DefaultKind(t *testing.T) {
	csvContent := `turnover,profit,total_assets,total_debt
900000,45000,300000,120000`

	rows, errs := utils.NewCSVParser(models.KindCompany).ParseApplicants(csvContent)
	require.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, models.KindCompany, rows[0].Kind)
	assert.Equal(t, "900000", rows[0].Features["revenue"])
	assert.Equal(t, "120000", rows[0].Features["liabilities"])
}

func TestCSVParser_UnknownKindIsKept(t *testing.T) {
	csvContent := `kind,revenue
trust,1000`

	rows, errs := utils.NewCSVParser("").ParseApplicants(csvContent)
	require.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, models.EntityKind("trust"), rows[0].Kind)
}

func TestCSVParser_MissingRequiredColumns(t *testing.T) {
	tests := []struct {
		name    string
		content string
		kind    models.EntityKind
	}{
		{"no kind and no default", "yearly_income\n1000", ""},
		{"no income or revenue", "kind,existing_debt\nindividual,100", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, errs := utils.NewCSVParser(tt.kind).ParseApplicants(tt.content)
			assert.Empty(t, rows)
			require.Len(t, errs, 1)
			assert.True(t, errors.Is(errs[0], utils.ErrMissingColumns))
		})
	}
}

func TestCSVParser_EmptyFile(t *testing.T) {
	rows, errs := utils.NewCSVParser(models.KindIndividual).ParseApplicants("   ")
	assert.Empty(t, rows)
	require.Len(t, errs, 1)
	assert.Equal(t, utils.ErrEmptyCSV, errs[0])
}

func TestCSVParser_HeaderOnly(t *testing.T) {
	rows, errs := utils.NewCSVParser(models.KindIndividual).ParseApplicants("yearly_income\n\n")
	assert.Empty(t, rows)
	require.NotEmpty(t, errs)
	assert.Equal(t, utils.ErrNoDataRows, errs[0])
}

func TestCSVParser_MalformedRow(t *testing.T) {
	csvContent := "kind,revenue\ncompany,\"unterminated\ncompany,5000"

	rows, errs := utils.NewCSVParser("").ParseApplicants(csvContent)
	assert.Empty(t, rows)
	assert.NotEmpty(t, errs)
}

func TestCheckApplicantFile(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		defaultKind models.EntityKind
		wantValid   bool
		wantRows    int
		wantKinds   map[models.EntityKind]int
		wantMissing []string
		wantErrors  []string
	}{
		{
			name:      "mixed kinds",
			content:   "kind,yearly_income,revenue\nindividual,100,\nbusiness,,5000\nperson,200,\n",
			wantValid: true,
			wantRows:  3,
			wantKinds: map[models.EntityKind]int{models.KindIndividual: 2, models.KindCompany: 1},
		},
		{
			name:        "default kind",
			content:     "turnover\n5000\n\n7000\n",
			defaultKind: models.KindCompany,
			wantValid:   true,
			wantRows:    2,
			wantKinds:   map[models.EntityKind]int{models.KindCompany: 2},
		},
		{
			name:        "missing columns",
			content:     "existing_debt\n100\n",
			wantRows:    1,
			wantMissing: []string{"kind", "yearly_income or revenue"},
			wantErrors:  []string{`line 2: unsupported kind ""`},
		},
		{
			name:       "unsupported kind",
			content:    "kind,revenue\ncompany,5000\ntrust,7000\n",
			wantRows:   2,
			wantKinds:  map[models.EntityKind]int{models.KindCompany: 1},
			wantErrors: []string{`line 3: unsupported kind "trust"`},
		},
		{
			name:        "empty file",
			content:     "",
			defaultKind: models.KindCompany,
			wantErrors:  []string{utils.ErrEmptyCSV.Error()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := utils.CheckApplicantFile(tt.content, tt.defaultKind)

			assert.Equal(t, tt.wantValid, result.Valid)
			assert.Equal(t, tt.wantRows, result.RowCount)
			if tt.wantKinds == nil {
				tt.wantKinds = map[models.EntityKind]int{}
			}
			assert.Equal(t, tt.wantKinds, result.Kinds)
			if tt.wantMissing == nil {
				tt.wantMissing = []string{}
			}
			assert.Equal(t, tt.wantMissing, result.MissingColumns)
			if tt.wantErrors == nil {
				tt.wantErrors = []string{}
			}
			assert.Equal(t, tt.wantErrors, result.Errors)
		})
	}
}
