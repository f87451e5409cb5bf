package scoring

import (
	"fmt"
	"math"

	"credit-risk-engine/internal/models"
)

// Factor names produced by the rule scorer.
const (
	FactorBase                 = "base_score"
	FactorYearlyIncome         = "yearly_income"
	FactorDebtToIncome         = "debt_to_income"
	FactorDebtWithoutIncome    = "debt_without_income"
	FactorCollateralGap        = "collateral_gap"
	FactorCreditHistory        = "credit_history"
	FactorCriminalHistory      = "criminal_history"
	FactorTaxClear             = "tax_clear"
	FactorCollateralRegistered = "collateral_registered"
	FactorProfitability        = "profitability"
	FactorSolvency             = "solvency"
	FactorRevenueScale         = "revenue_scale"
)

// IndividualRuleWeights are the coefficients of the individual rule formula.
// Penalties are stored as positive magnitudes.
type IndividualRuleWeights struct {
	Base float64
	// IncomeWeight is reached when yearly income hits IncomeSaturation; the
	// term grows with log(1+income) below that.
	IncomeWeight        float64
	IncomeSaturation    float64
	DebtToIncomePenalty float64 // per unit of debt/income
	DebtToIncomeCap     float64
	// CollateralGapPenalty applies to the uncovered share of the request.
	CollateralGapPenalty float64
	// CreditHistoryWeight is the contribution of a perfect 850 score; 300 adds zero.
	CreditHistoryWeight       float64
	CriminalPenalty           float64
	TaxClearBonus             float64
	TaxArrearsPenalty         float64
	CollateralRegisteredBonus float64
	CollateralMissingPenalty  float64
}

// CompanyRuleWeights are the coefficients of the company rule formula.
type CompanyRuleWeights struct {
	Base float64
	// ProfitabilityWeight multiplies net margin clamped to [MarginFloor, MarginCap].
	ProfitabilityWeight float64
	MarginFloor         float64
	MarginCap           float64
	// SolvencyWeight multiplies (assets/liabilities - 1), ratio capped at SolvencyCap.
	SolvencyWeight float64
	SolvencyCap    float64
	// RevenuePerDecade is added per tenfold revenue above RevenuePivot,
	// bounded to [-RevenuePenaltyCap, RevenueBonusCap].
	RevenuePerDecade  float64
	RevenuePivot      float64
	RevenuePenaltyCap float64
	RevenueBonusCap   float64
	TaxClearBonus     float64
	TaxArrearsPenalty float64
}

// DefaultIndividualRuleWeights returns the calibrated individual coefficients.
func DefaultIndividualRuleWeights() IndividualRuleWeights {
	return IndividualRuleWeights{
		Base:                      400,
		IncomeWeight:              150,
		IncomeSaturation:          1_000_000,
		DebtToIncomePenalty:       100,
		DebtToIncomeCap:           3,
		CollateralGapPenalty:      150,
		CreditHistoryWeight:       300,
		CriminalPenalty:           250,
		TaxClearBonus:             25,
		TaxArrearsPenalty:         100,
		CollateralRegisteredBonus: 25,
		CollateralMissingPenalty:  50,
	}
}

// DefaultCompanyRuleWeights returns the calibrated company coefficients.
func DefaultCompanyRuleWeights() CompanyRuleWeights {
	return CompanyRuleWeights{
		Base:                400,
		ProfitabilityWeight: 400,
		MarginFloor:         -0.5,
		MarginCap:           0.5,
		SolvencyWeight:      100,
		SolvencyCap:         3,
		RevenuePerDecade:    50,
		RevenuePivot:        100_000,
		RevenuePenaltyCap:   100,
		RevenueBonusCap:     150,
		TaxClearBonus:       25,
		TaxArrearsPenalty:   100,
	}
}

// Validate rejects weights that would break monotonicity or divide by zero.
func (w IndividualRuleWeights) Validate() error {
	magnitudes := map[string]float64{
		"income_weight":               w.IncomeWeight,
		"debt_to_income_penalty":      w.DebtToIncomePenalty,
		"collateral_gap_penalty":      w.CollateralGapPenalty,
		"credit_history_weight":       w.CreditHistoryWeight,
		"criminal_penalty":            w.CriminalPenalty,
		"tax_clear_bonus":             w.TaxClearBonus,
		"tax_arrears_penalty":         w.TaxArrearsPenalty,
		"collateral_registered_bonus": w.CollateralRegisteredBonus,
		"collateral_missing_penalty":  w.CollateralMissingPenalty,
	}
	if err := checkMagnitudes(magnitudes); err != nil {
		return err
	}
	if w.IncomeSaturation <= 0 {
		return fmt.Errorf("income saturation must be positive")
	}
	if w.DebtToIncomeCap <= 0 {
		return fmt.Errorf("debt to income cap must be positive")
	}
	return nil
}

// Validate rejects weights that would break the formula.
func (w CompanyRuleWeights) Validate() error {
	magnitudes := map[string]float64{
		"profitability_weight": w.ProfitabilityWeight,
		"solvency_weight":      w.SolvencyWeight,
		"revenue_per_decade":   w.RevenuePerDecade,
		"revenue_penalty_cap":  w.RevenuePenaltyCap,
		"revenue_bonus_cap":    w.RevenueBonusCap,
		"tax_clear_bonus":      w.TaxClearBonus,
		"tax_arrears_penalty":  w.TaxArrearsPenalty,
	}
	if err := checkMagnitudes(magnitudes); err != nil {
		return err
	}
	if w.MarginFloor > w.MarginCap {
		return fmt.Errorf("margin floor greater than margin cap")
	}
	if w.SolvencyCap <= 1 {
		return fmt.Errorf("solvency cap must be above 1")
	}
	if w.RevenuePivot <= 0 {
		return fmt.Errorf("revenue pivot must be positive")
	}
	return nil
}

func checkMagnitudes(values map[string]float64) error {
	for name, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

// RuleScorer is the deterministic baseline scorer. It is always available.
type RuleScorer struct {
	individual IndividualRuleWeights
	company    CompanyRuleWeights
}

// NewRuleScorer creates a rule scorer with the default coefficients.
func NewRuleScorer() *RuleScorer {
	return &RuleScorer{
		individual: DefaultIndividualRuleWeights(),
		company:    DefaultCompanyRuleWeights(),
	}
}

// NewRuleScorerWithWeights creates a rule scorer with custom coefficients.
func NewRuleScorerWithWeights(individual IndividualRuleWeights, company CompanyRuleWeights) (*RuleScorer, error) {
	if err := individual.Validate(); err != nil {
		return nil, fmt.Errorf("invalid individual rule weights: %w", err)
	}
	if err := company.Validate(); err != nil {
		return nil, fmt.Errorf("invalid company rule weights: %w", err)
	}
	return &RuleScorer{individual: individual, company: company}, nil
}

// Version implements Scorer.
func (s *RuleScorer) Version() string {
	return RuleVersion
}

// Score implements Scorer. The returned raw score is the exact sum of the
// returned contributions.
func (s *RuleScorer) Score(record models.FeatureRecord) (float64, []models.Contribution, error) {
	if !record.IsConsistent() {
		return 0, nil, fmt.Errorf("feature record variant does not match kind %q", record.Kind)
	}

	var contributions []models.Contribution
	switch record.Kind {
	case models.KindIndividual:
		contributions = s.scoreIndividual(record.Individual)
	case models.KindCompany:
		contributions = s.scoreCompany(record.Company)
	}

	return sumContributions(contributions), contributions, nil
}

func (s *RuleScorer) scoreIndividual(f *models.IndividualFeatures) []models.Contribution {
	w := s.individual
	contributions := make([]models.Contribution, 0, 9)
	add := func(factor string, value float64) {
		contributions = append(contributions, models.Contribution{Factor: factor, Value: value})
	}

	add(FactorBase, w.Base)

	// Log scaling, saturating at IncomeSaturation
	incomeShare := math.Log1p(f.YearlyIncome) / math.Log1p(w.IncomeSaturation)
	add(FactorYearlyIncome, w.IncomeWeight*math.Min(incomeShare, 1))

	// Ratio term is skipped without income. Debt on zero income takes the
	// full capped penalty so that adding income never lowers the score.
	if f.YearlyIncome > 0 {
		dti := math.Min(ratio(f.ExistingDebt, f.YearlyIncome), w.DebtToIncomeCap)
		add(FactorDebtToIncome, -w.DebtToIncomePenalty*dti)
	} else {
		add(FactorDebtToIncome, 0)
		if f.ExistingDebt > 0 {
			add(FactorDebtWithoutIncome, -w.DebtToIncomePenalty*w.DebtToIncomeCap)
		}
	}

	gap := 0.0
	if f.RequestedAmount > 0 {
		uncovered := math.Max(f.RequestedAmount-f.CollateralValue, 0)
		gap = -w.CollateralGapPenalty * ratio(uncovered, f.RequestedAmount)
	}
	add(FactorCollateralGap, gap)

	creditShare := (f.CreditHistoryScore - models.MinCreditHistoryScore) /
		(models.MaxCreditHistoryScore - models.MinCreditHistoryScore)
	add(FactorCreditHistory, w.CreditHistoryWeight*clampFloat(creditShare, 0, 1))

	criminal := 0.0
	if f.CriminalHistory {
		criminal = -w.CriminalPenalty
	}
	add(FactorCriminalHistory, criminal)

	if f.TaxClear != nil {
		if *f.TaxClear {
			add(FactorTaxClear, w.TaxClearBonus)
		} else {
			add(FactorTaxClear, -w.TaxArrearsPenalty)
		}
	}

	if f.CollateralRegistered != nil {
		if *f.CollateralRegistered {
			add(FactorCollateralRegistered, w.CollateralRegisteredBonus)
		} else {
			add(FactorCollateralRegistered, -w.CollateralMissingPenalty)
		}
	}

	return contributions
}

func (s *RuleScorer) scoreCompany(f *models.CompanyFeatures) []models.Contribution {
	w := s.company
	contributions := make([]models.Contribution, 0, 5)
	add := func(factor string, value float64) {
		contributions = append(contributions, models.Contribution{Factor: factor, Value: value})
	}

	add(FactorBase, w.Base)

	profitability := 0.0
	if f.Revenue > 0 {
		margin := clampFloat(ratio(f.NetIncome, f.Revenue), w.MarginFloor, w.MarginCap)
		profitability = w.ProfitabilityWeight * margin
	}
	add(FactorProfitability, profitability)

	// No balance sheet at all carries no signal either way.
	solvency := 0.0
	if f.Assets > 0 || f.Liabilities > 0 {
		cover := math.Min(ratio(f.Assets, f.Liabilities), w.SolvencyCap)
		solvency = w.SolvencyWeight * (cover - 1)
	}
	add(FactorSolvency, solvency)

	scale := -w.RevenuePenaltyCap
	if f.Revenue >= 1 {
		decades := math.Log10(f.Revenue) - math.Log10(w.RevenuePivot)
		scale = clampFloat(w.RevenuePerDecade*decades, -w.RevenuePenaltyCap, w.RevenueBonusCap)
	}
	add(FactorRevenueScale, scale)

	if f.TaxClear != nil {
		if *f.TaxClear {
			add(FactorTaxClear, w.TaxClearBonus)
		} else {
			add(FactorTaxClear, -w.TaxArrearsPenalty)
		}
	}

	return contributions
}

// sumContributions adds terms in declaration order so the result is
// reproducible from the explanation.
func sumContributions(contributions []models.Contribution) float64 {
	total := 0.0
	for _, c := range contributions {
		total += c.Value
	}
	return total
}
