// Package utils provides utility functions for the credit risk engine.
package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"credit-risk-engine/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// Bookkeeping columns that are not features.
const (
	ColumnKind      = "kind"
	ColumnReference = "reference"
)

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// kind aliases
	"entity_kind":    ColumnKind,
	"entity type":    ColumnKind,
	"entity_type":    ColumnKind,
	"applicant_type": ColumnKind,
	"type":           ColumnKind,

	// reference aliases
	"id":           ColumnReference,
	"applicant_id": ColumnReference,
	"application":  ColumnReference,
	"customer_id":  ColumnReference,
	"user_id":      ColumnReference,
	"tin":          ColumnReference,
	"name":         ColumnReference,

	// income aliases
	"income":         "yearly_income",
	"annual_income":  "yearly_income",
	"annualincome":   "yearly_income",
	"annual income":  "yearly_income",
	"yearly income":  "yearly_income",
	"salary":         "yearly_income",
	"monthly_income": "yearly_income", // Will multiply by 12
	"monthlyincome":  "yearly_income",
	"monthly income": "yearly_income",
	"monthly_salary": "yearly_income",

	// individual aliases
	"debt":              "existing_debt",
	"existing debt":     "existing_debt",
	"loan_amount":       "requested_amount",
	"requested":         "requested_amount",
	"amount":            "requested_amount",
	"collateral":        "collateral_value",
	"credit_score":      "credit_history_score",
	"creditscore":       "credit_history_score",
	"credit score":      "credit_history_score",
	"criminal":          "criminal_history",
	"criminal_record":   "criminal_history",
	"parcel_registered": "collateral_registered",
	"kadastr_verified":  "collateral_registered",
	"no_tax_arrears":    "tax_clear",
	"soliq_clear":       "tax_clear",

	// company aliases
	"turnover":     "revenue",
	"sales":        "revenue",
	"profit":       "net_income",
	"net_profit":   "net_income",
	"total_assets": "assets",
	"total_debt":   "liabilities",
}

// CSVParser handles parsing of applicant CSV files.
type CSVParser struct {
	defaultKind     models.EntityKind
	columnMapping   map[string]int
	originalHeaders map[string]string // Maps normalized column name to original header
}

// NewCSVParser creates a parser. defaultKind is used for rows without a kind
// column and may be empty when the file carries one.
func NewCSVParser(defaultKind models.EntityKind) *CSVParser {
	return &CSVParser{
		defaultKind:     defaultKind,
		columnMapping:   make(map[string]int),
		originalHeaders: make(map[string]string),
	}
}

// ParseApplicants parses CSV content into applicant rows. Cell values are
// passed through as strings so the feature normalizer reports bad values
// per row; only structural problems are returned as errors.
func (p *CSVParser) ParseApplicants(content string) ([]*models.ApplicantRow, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	// Build column mapping
	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var rows []*models.ApplicantRow
	var parseErrors []error
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}
		if isEmptyRecord(record) {
			continue
		}

		rows = append(rows, p.parseRow(record, lineNum))
	}

	if len(rows) == 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return rows, parseErrors
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)
	p.originalHeaders = make(map[string]string)

	for i, col := range header {
		// Normalize column name
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		original := normalized

		// Apply alias if exists
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}

		p.columnMapping[normalized] = i
		p.originalHeaders[normalized] = original // Store original header name
	}

	missing := missingColumns(p.columnMapping, p.defaultKind)
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// missingColumns reports what a file needs before any row can be scored:
// a kind source and at least one primary income column.
func missingColumns(columns map[string]int, defaultKind models.EntityKind) []string {
	var missing []string
	if _, ok := columns[ColumnKind]; !ok && defaultKind == "" {
		missing = append(missing, ColumnKind)
	}

	_, hasIncome := columns["yearly_income"]
	_, hasRevenue := columns["revenue"]
	if !hasIncome && !hasRevenue {
		missing = append(missing, "yearly_income or revenue")
	}
	return missing
}

// parseRow parses a single CSV row into an applicant.
func (p *CSVParser) parseRow(record []string, lineNum int) *models.ApplicantRow {
	getValue := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := &models.ApplicantRow{
		Line:      lineNum,
		Reference: getValue(ColumnReference),
		Kind:      p.defaultKind,
		Features:  make(map[string]any),
	}
	if kind := getValue(ColumnKind); kind != "" {
		row.Kind = models.NormalizeEntityKind(kind)
	}

	for column := range p.columnMapping {
		if column == ColumnKind || column == ColumnReference {
			continue
		}
		value := getValue(column)
		if value == "" {
			continue
		}
		row.Features[column] = value
	}

	// Check if the original column was monthly income - if so, multiply by 12
	if original, ok := p.originalHeaders["yearly_income"]; ok && strings.Contains(original, "month") {
		if raw, ok := row.Features["yearly_income"].(string); ok {
			if monthly, err := models.ParseAmount(raw); err == nil {
				row.Features["yearly_income"] = monthly * 12
			}
		}
	}

	return row
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// CheckApplicantFile validates the structure of an applicant CSV without
// scoring it: the header must resolve a kind and an income column, and every
// row's kind must be supported.
func CheckApplicantFile(content string, defaultKind models.EntityKind) *CSVCheckResult {
	result := &CSVCheckResult{
		Columns:        []string{},
		MissingColumns: []string{},
		Kinds:          map[models.EntityKind]int{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, ErrEmptyCSV.Error())
		return result
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result
	}

	columns := make(map[string]int)
	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}
		columns[normalized] = i
		result.Columns = append(result.Columns, col)
	}
	result.MissingColumns = append(result.MissingColumns, missingColumns(columns, defaultKind)...)
	kindIdx, hasKind := columns[ColumnKind]

	lineNum := 1
	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", lineNum, err))
			continue
		}
		if isEmptyRecord(record) {
			continue
		}
		result.RowCount++

		kind := defaultKind
		if hasKind && kindIdx < len(record) && strings.TrimSpace(record[kindIdx]) != "" {
			kind = models.NormalizeEntityKind(record[kindIdx])
		}
		if !kind.IsValid() {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: unsupported kind %q", lineNum, kind))
			continue
		}
		result.Kinds[kind]++
	}

	result.Valid = len(result.MissingColumns) == 0 && len(result.Errors) == 0 && result.RowCount > 0
	return result
}

// CSVCheckResult is the outcome of CheckApplicantFile.
type CSVCheckResult struct {
	Valid          bool                      `json:"valid"`
	RowCount       int                       `json:"row_count"`
	Columns        []string                  `json:"columns"`
	MissingColumns []string                  `json:"missing_columns"`
	Kinds          map[models.EntityKind]int `json:"kinds"`
	Errors         []string                  `json:"errors"`
}
