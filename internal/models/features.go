// Package models defines the data structures for the credit risk scoring engine.
package models

import (
	"strings"
)

// EntityKind discriminates the two feature record variants.
type EntityKind string

const (
	KindIndividual EntityKind = "individual"
	KindCompany    EntityKind = "company"
)

// ValidEntityKinds returns all supported entity kinds.
func ValidEntityKinds() []EntityKind {
	return []EntityKind{
		KindIndividual,
		KindCompany,
	}
}

// IsValid checks if the entity kind is supported.
func (k EntityKind) IsValid() bool {
	for _, valid := range ValidEntityKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

// ParseEntityKind reads a kind from the public API. Only the canonical
// names are accepted; anything else fails IsValid.
func ParseEntityKind(kind string) EntityKind {
	return EntityKind(strings.TrimSpace(kind))
}

// NormalizeEntityKind converts common spellings to the standard kind values.
// It serves batch files, whose kind columns are free text. Unknown values are
// returned lowercased and fail IsValid.
func NormalizeEntityKind(kind string) EntityKind {
	normalized := strings.ToLower(strings.TrimSpace(kind))
	normalized = strings.Trim(normalized, "/")

	kindMap := map[string]EntityKind{
		"individual": KindIndividual,
		"person":     KindIndividual,
		"personal":   KindIndividual,
		"company":    KindCompany,
		"business":   KindCompany,
		"corporate":  KindCompany,
	}

	if mapped, ok := kindMap[normalized]; ok {
		return mapped
	}
	return EntityKind(normalized)
}

// Default values substituted for absent optional fields.
const (
	DefaultCreditHistoryScore = 680.0
	MinCreditHistoryScore     = 300.0
	MaxCreditHistoryScore     = 850.0
)

// IndividualFeatures is the validated feature set of a private applicant.
// TaxClear and CollateralRegistered are optional registry enrichment signals;
// nil means the caller did not resolve them.
type IndividualFeatures struct {
	YearlyIncome         float64 `json:"yearly_income"`
	ExistingDebt         float64 `json:"existing_debt"`
	RequestedAmount      float64 `json:"requested_amount"`
	CollateralValue      float64 `json:"collateral_value"`
	CreditHistoryScore   float64 `json:"credit_history_score"`
	CriminalHistory      bool    `json:"criminal_history"`
	TaxClear             *bool   `json:"tax_clear,omitempty"`
	CollateralRegistered *bool   `json:"collateral_registered,omitempty"`
}

// CompanyFeatures is the validated feature set of a company applicant.
type CompanyFeatures struct {
	Revenue     float64 `json:"revenue"`
	NetIncome   float64 `json:"net_income"`
	Assets      float64 `json:"assets"`
	Liabilities float64 `json:"liabilities"`
	TaxClear    *bool   `json:"tax_clear,omitempty"`
}

// FeatureRecord is a tagged union: exactly one of Individual or Company is set,
// matching Kind.
type FeatureRecord struct {
	Kind       EntityKind          `json:"kind"`
	Individual *IndividualFeatures `json:"individual,omitempty"`
	Company    *CompanyFeatures    `json:"company,omitempty"`
}

// NewIndividualRecord wraps individual features in a FeatureRecord.
func NewIndividualRecord(f IndividualFeatures) FeatureRecord {
	return FeatureRecord{Kind: KindIndividual, Individual: &f}
}

// NewCompanyRecord wraps company features in a FeatureRecord.
func NewCompanyRecord(f CompanyFeatures) FeatureRecord {
	return FeatureRecord{Kind: KindCompany, Company: &f}
}

// IsConsistent reports whether the active variant matches the discriminant.
func (r FeatureRecord) IsConsistent() bool {
	switch r.Kind {
	case KindIndividual:
		return r.Individual != nil && r.Company == nil
	case KindCompany:
		return r.Company != nil && r.Individual == nil
	default:
		return false
	}
}
