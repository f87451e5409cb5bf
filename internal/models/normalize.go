// Package models defines the data structures for the credit risk scoring engine.
package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

type fieldType int

const (
	fieldNumber fieldType = iota
	fieldBool
)

// fieldSpec declares one input field of a feature record variant.
type fieldSpec struct {
	name     string
	typ      fieldType
	required bool
	// optional fields stay unset when absent instead of taking a default.
	optional    bool
	defNumber   float64
	defBool     bool
	nonNegative bool
	bounded     bool
	min, max    float64
}

var individualFields = []fieldSpec{
	{name: "yearly_income", typ: fieldNumber, required: true, nonNegative: true},
	{name: "existing_debt", typ: fieldNumber, nonNegative: true},
	{name: "requested_amount", typ: fieldNumber, nonNegative: true},
	{name: "collateral_value", typ: fieldNumber, nonNegative: true},
	{
		name: "credit_history_score", typ: fieldNumber, defNumber: DefaultCreditHistoryScore,
		bounded: true, min: MinCreditHistoryScore, max: MaxCreditHistoryScore,
	},
	{name: "criminal_history", typ: fieldBool},
	{name: "tax_clear", typ: fieldBool, optional: true},
	{name: "collateral_registered", typ: fieldBool, optional: true},
}

var companyFields = []fieldSpec{
	{name: "revenue", typ: fieldNumber, required: true, nonNegative: true},
	{name: "net_income", typ: fieldNumber},
	{name: "assets", typ: fieldNumber, nonNegative: true},
	{name: "liabilities", typ: fieldNumber, nonNegative: true},
	{name: "tax_clear", typ: fieldBool, optional: true},
}

// FieldNames returns the declared input fields for kind in declaration order.
func FieldNames(kind EntityKind) []string {
	specs := fieldsFor(kind)
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.name)
	}
	return names
}

func fieldsFor(kind EntityKind) []fieldSpec {
	switch kind {
	case KindIndividual:
		return individualFields
	case KindCompany:
		return companyFields
	default:
		return nil
	}
}

// normalizedValues holds converted fields keyed by name.
type normalizedValues struct {
	numbers map[string]float64
	bools   map[string]*bool
}

// NormalizeFeatures converts a raw, partially missing field mapping into a
// validated FeatureRecord for kind. Absent fields take their defaults; fields
// not declared for kind are ignored. The first failing field, in declaration
// order, is reported.
func NormalizeFeatures(kind EntityKind, raw map[string]any) (FeatureRecord, error) {
	if !kind.IsValid() {
		return FeatureRecord{}, NewValidationError("kind", ReasonUnsupported)
	}

	values := normalizedValues{
		numbers: make(map[string]float64),
		bools:   make(map[string]*bool),
	}

	for _, spec := range fieldsFor(kind) {
		if err := values.read(spec, raw); err != nil {
			return FeatureRecord{}, err
		}
	}

	switch kind {
	case KindIndividual:
		return NewIndividualRecord(IndividualFeatures{
			YearlyIncome:         values.numbers["yearly_income"],
			ExistingDebt:         values.numbers["existing_debt"],
			RequestedAmount:      values.numbers["requested_amount"],
			CollateralValue:      values.numbers["collateral_value"],
			CreditHistoryScore:   values.numbers["credit_history_score"],
			CriminalHistory:      derefBool(values.bools["criminal_history"]),
			TaxClear:             values.bools["tax_clear"],
			CollateralRegistered: values.bools["collateral_registered"],
		}), nil
	default:
		return NewCompanyRecord(CompanyFeatures{
			Revenue:     values.numbers["revenue"],
			NetIncome:   values.numbers["net_income"],
			Assets:      values.numbers["assets"],
			Liabilities: values.numbers["liabilities"],
			TaxClear:    values.bools["tax_clear"],
		}), nil
	}
}

func (v normalizedValues) read(spec fieldSpec, raw map[string]any) error {
	value, present := raw[spec.name]
	if present && isBlank(value) {
		present = false
	}

	if !present {
		if spec.required {
			return NewValidationError(spec.name, ReasonRequired)
		}
		switch {
		case spec.optional:
		case spec.typ == fieldBool:
			def := spec.defBool
			v.bools[spec.name] = &def
		default:
			v.numbers[spec.name] = spec.defNumber
		}
		return nil
	}

	if spec.typ == fieldBool {
		b, ok := toBool(value)
		if !ok {
			if spec.required {
				return NewValidationError(spec.name, ReasonRequired)
			}
			return NewValidationError(spec.name, ReasonNotABoolean)
		}
		v.bools[spec.name] = &b
		return nil
	}

	n, ok := toFloat(value)
	if !ok {
		if spec.required {
			return NewValidationError(spec.name, ReasonRequired)
		}
		return NewValidationError(spec.name, ReasonNotANumber)
	}
	if spec.nonNegative && n < 0 {
		return NewValidationError(spec.name, ReasonNegative)
	}
	if spec.bounded && (n < spec.min || n > spec.max) {
		return NewValidationError(spec.name, ReasonOutOfRange)
	}
	v.numbers[spec.name] = n
	return nil
}

// isBlank treats null and whitespace-only strings as absent.
func isBlank(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// toFloat converts a raw value to a finite float64.
func toFloat(value any) (float64, bool) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := ParseAmount(n)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// toBool converts booleans, boolean strings and the numbers 0/1.
func toBool(value any) (bool, bool) {
	switch b := value.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "yes", "y":
			return true, true
		case "no", "n":
			return false, true
		}
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		n, ok := toFloat(value)
		if !ok {
			return false, false
		}
		switch n {
		case 0:
			return false, true
		case 1:
			return true, true
		}
		return false, false
	}
}

// ParseAmount parses a numeric string, tolerating thousands separators,
// surrounding spaces and a leading currency symbol.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("value is not finite")
	}
	return f, nil
}

func derefBool(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}
