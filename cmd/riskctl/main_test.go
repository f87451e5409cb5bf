package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/batch"
	"credit-risk-engine/internal/utils"
)

const sampleArtifact = "../../artifacts/scorecard.yaml"

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("PREDICTION_LOG_ENABLED", "false")
	t.Setenv("MODEL_ARTIFACT_PATH", "")
	t.Setenv("MODEL_ARTIFACT_BUCKET", "")
	t.Setenv("MODEL_ARTIFACT_KEY", "")

	modelPath, scoreKind, scoreFile = "", "", ""
	batchKind, batchOutput, batchWorkers, batchCheck = "", "", 0, false
	logsRequestID, logsRecent = "", 20

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestScoreCommand(t *testing.T) {
	path := writeFile(t, "applicant.json", `{"yearly_income":72000,"existing_debt":8000}`)

	out, err := runCLI(t, "score", "--kind", "individual", "--file", path, "--model", sampleArtifact)
	require.NoError(t, err)

	var result models.ScoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "scorecard/v2", result.ModelVersion)
	assert.GreaterOrEqual(t, result.Score, models.MinScore)
	assert.LessOrEqual(t, result.Score, models.MaxScore)
}

func TestScoreCommand_ValidationError(t *testing.T) {
	path := writeFile(t, "applicant.json", `{"kind":"company","features":{"net_income":1}}`)

	out, err := runCLI(t, "score", "--file", path)
	require.Error(t, err)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "revenue", resp.Field)
	assert.Equal(t, models.ReasonRequired, resp.Reason)
}

func TestBatchCommand(t *testing.T) {
	input := writeFile(t, "applicants.csv", "reference,income,debt\nA,50000,1000\nB,,\n")
	output := filepath.Join(t.TempDir(), "out", "report.json")

	_, err := runCLI(t, "batch", "--file", input, "--kind", "individual", "--out", output, "--workers", "2")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var report batch.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Summary.TotalRows)
	assert.Equal(t, 1, report.Summary.Scored)
	assert.Equal(t, 1, report.Summary.ValidationFailures)
}

func TestBatchCommand_Check(t *testing.T) {
	valid := writeFile(t, "applicants.csv", "kind,income,turnover\nperson,50000,\ncompany,,900000\n")

	out, err := runCLI(t, "batch", "--file", valid, "--check")
	require.NoError(t, err)

	var result utils.CSVCheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.RowCount)
	assert.Equal(t, map[models.EntityKind]int{models.KindIndividual: 1, models.KindCompany: 1}, result.Kinds)

	invalid := writeFile(t, "debts.csv", "debt\n100\n")
	out, err = runCLI(t, "batch", "--file", invalid, "--kind", "individual", "--check")
	assert.ErrorContains(t, err, "not a valid applicant file")

	var bad utils.CSVCheckResult
	require.NoError(t, json.Unmarshal([]byte(out), &bad))
	assert.False(t, bad.Valid)
	assert.Equal(t, []string{"yearly_income or revenue"}, bad.MissingColumns)
}

func TestBatchCommand_UnsupportedKind(t *testing.T) {
	input := writeFile(t, "applicants.csv", "income\n50000\n")

	_, err := runCLI(t, "batch", "--file", input, "--kind", "trust")
	assert.ErrorContains(t, err, "unsupported kind")
}

func TestModelValidateCommand(t *testing.T) {
	out, err := runCLI(t, "model", "validate", "--file", sampleArtifact)
	require.NoError(t, err)
	assert.Contains(t, out, "valid, version scorecard/v2")
	assert.Contains(t, out, "debt_to_income")

	bad := writeFile(t, "bad.yaml", "version: bad/v1\ncompany:\n  intercept: 1\n  terms:\n    - feature: horoscope\n      coefficient: 1\n")
	_, err = runCLI(t, "model", "validate", "--file", bad)
	assert.Error(t, err)
}

func TestModelFeaturesCommand(t *testing.T) {
	out, err := runCLI(t, "model", "features")
	require.NoError(t, err)
	assert.Contains(t, out, "individual: ")
	assert.Contains(t, out, "profit_margin")
}

func TestPrintPredictionLogs(t *testing.T) {
	entries := []*models.PredictionLog{
		{
			RequestID:    "req-9",
			Kind:         models.KindCompany,
			Score:        512.4,
			ModelVersion: "scorecard/v2",
			Explanation: []models.Factor{
				{Factor: "profit_margin", Contribution: -64, Direction: models.DirectionNegative},
			},
			CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{RequestID: "req-10", Kind: models.KindIndividual, Score: 700, ModelVersion: "rule/v1"},
	}

	var out bytes.Buffer
	require.NoError(t, printPredictionLogs(&out, entries))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "REQUEST ID")
	assert.Contains(t, lines[1], "2026-03-01T12:00:00Z")
	assert.Contains(t, lines[1], "req-9")
	assert.Contains(t, lines[1], "512.4")
	assert.Contains(t, lines[1], "profit_margin (-64.0)")
	assert.Contains(t, lines[2], "rule/v1")
}

func TestLogsShowCommand_RequiresPositiveRecent(t *testing.T) {
	_, err := runCLI(t, "logs", "show", "--recent", "0")
	assert.ErrorContains(t, err, "--recent must be positive")
}
