package scoring

import (
	"fmt"
	"math"
	"sort"

	"credit-risk-engine/internal/models"
	"credit-risk-engine/internal/services/modelstore"
)

// featureFunc extracts one model input from a record. ok is false when the
// signal is not available for this applicant.
type featureFunc func(r models.FeatureRecord) (value float64, ok bool)

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func optionalBool(b *bool) (float64, bool) {
	if b == nil {
		return 0, false
	}
	return boolValue(*b), true
}

// individualFeatures are the inputs a scorecard may reference for individuals.
var individualFeatures = map[string]featureFunc{
	"yearly_income":        func(r models.FeatureRecord) (float64, bool) { return r.Individual.YearlyIncome, true },
	"log_yearly_income":    func(r models.FeatureRecord) (float64, bool) { return math.Log1p(r.Individual.YearlyIncome), true },
	"existing_debt":        func(r models.FeatureRecord) (float64, bool) { return r.Individual.ExistingDebt, true },
	"requested_amount":     func(r models.FeatureRecord) (float64, bool) { return r.Individual.RequestedAmount, true },
	"collateral_value":     func(r models.FeatureRecord) (float64, bool) { return r.Individual.CollateralValue, true },
	"credit_history_score": func(r models.FeatureRecord) (float64, bool) { return r.Individual.CreditHistoryScore, true },
	"criminal_history": func(r models.FeatureRecord) (float64, bool) {
		return boolValue(r.Individual.CriminalHistory), true
	},
	"debt_to_income": func(r models.FeatureRecord) (float64, bool) {
		if r.Individual.YearlyIncome <= 0 {
			return 0, true
		}
		return ratio(r.Individual.ExistingDebt, r.Individual.YearlyIncome), true
	},
	"collateral_coverage": func(r models.FeatureRecord) (float64, bool) {
		if r.Individual.RequestedAmount <= 0 {
			return 0, true
		}
		return ratio(r.Individual.CollateralValue, r.Individual.RequestedAmount), true
	},
	"tax_clear": func(r models.FeatureRecord) (float64, bool) {
		return optionalBool(r.Individual.TaxClear)
	},
	"collateral_registered": func(r models.FeatureRecord) (float64, bool) {
		return optionalBool(r.Individual.CollateralRegistered)
	},
}

// companyFeatures are the inputs a scorecard may reference for companies.
var companyFeatures = map[string]featureFunc{
	"revenue":     func(r models.FeatureRecord) (float64, bool) { return r.Company.Revenue, true },
	"log_revenue": func(r models.FeatureRecord) (float64, bool) { return math.Log1p(r.Company.Revenue), true },
	"net_income":  func(r models.FeatureRecord) (float64, bool) { return r.Company.NetIncome, true },
	"assets":      func(r models.FeatureRecord) (float64, bool) { return r.Company.Assets, true },
	"liabilities": func(r models.FeatureRecord) (float64, bool) { return r.Company.Liabilities, true },
	"profit_margin": func(r models.FeatureRecord) (float64, bool) {
		if r.Company.Revenue <= 0 {
			return 0, true
		}
		return ratio(r.Company.NetIncome, r.Company.Revenue), true
	},
	"solvency": func(r models.FeatureRecord) (float64, bool) {
		return ratio(r.Company.Assets, r.Company.Liabilities), true
	},
	"leverage": func(r models.FeatureRecord) (float64, bool) {
		equity := math.Max(r.Company.Assets-r.Company.Liabilities, 0)
		if equity <= 0 {
			return 0, true
		}
		return ratio(r.Company.Liabilities, equity), true
	},
	"tax_clear": func(r models.FeatureRecord) (float64, bool) {
		return optionalBool(r.Company.TaxClear)
	},
}

// featureRange is the interval an input can take before clipping.
type featureRange struct {
	lo, hi float64
}

var (
	unbounded   = featureRange{lo: math.Inf(-1), hi: math.Inf(1)}
	nonNegative = featureRange{lo: 0, hi: math.Inf(1)}
	indicator   = featureRange{lo: 0, hi: 1}
	// log1p of the largest float64
	logAmount = featureRange{lo: 0, hi: 710}
)

// featureRanges lists the intrinsic range of every input. Open ends must be
// closed by the term's min/max so no valid record can overflow a term.
var featureRanges = map[string]featureRange{
	"yearly_income":         nonNegative,
	"log_yearly_income":     logAmount,
	"existing_debt":         nonNegative,
	"requested_amount":      nonNegative,
	"collateral_value":      nonNegative,
	"credit_history_score":  {lo: models.MinCreditHistoryScore, hi: models.MaxCreditHistoryScore},
	"criminal_history":      indicator,
	"debt_to_income":        nonNegative,
	"collateral_coverage":   nonNegative,
	"tax_clear":             indicator,
	"collateral_registered": indicator,
	"revenue":               nonNegative,
	"log_revenue":           logAmount,
	"net_income":            unbounded,
	"assets":                nonNegative,
	"liabilities":           nonNegative,
	"profit_margin":         unbounded,
	"solvency":              nonNegative,
	"leverage":              nonNegative,
}

// maxTermSwing caps how far a single term may move the raw score. A term
// past it would swamp the intercept in float64 arithmetic.
const maxTermSwing = 1e6

// checkTermRange rejects terms that can reach an unbounded or absurdly large
// contribution for some valid record.
func checkTermRange(term modelstore.Term) error {
	r, ok := featureRanges[term.Feature]
	if !ok {
		r = unbounded
	}
	if term.Min != nil {
		r.lo = math.Max(r.lo, *term.Min)
	}
	if term.Max != nil {
		r.hi = math.Min(r.hi, *term.Max)
	}

	if math.IsInf(r.lo, -1) {
		return fmt.Errorf("term %q needs a min", term.Feature)
	}
	if math.IsInf(r.hi, 1) {
		return fmt.Errorf("term %q needs a max", term.Feature)
	}
	if swing := math.Abs(term.Coefficient) * math.Max(math.Abs(r.lo), math.Abs(r.hi)); swing > maxTermSwing {
		return fmt.Errorf("term %q can move the score by %g points", term.Feature, swing)
	}
	return nil
}

func featuresFor(kind models.EntityKind) map[string]featureFunc {
	switch kind {
	case models.KindIndividual:
		return individualFeatures
	case models.KindCompany:
		return companyFeatures
	default:
		return nil
	}
}

// ModelFeatureNames lists the scorecard inputs available for kind, sorted.
func ModelFeatureNames(kind models.EntityKind) []string {
	features := featuresFor(kind)
	names := make([]string, 0, len(features))
	for name := range features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compiledTerm is a scorecard term bound to its extractor.
type compiledTerm struct {
	term    modelstore.Term
	extract featureFunc
}

type compiledScorecard struct {
	intercept float64
	terms     []compiledTerm
}

// ModelScorer scores records with a loaded scorecard artifact. It holds only
// data copied at construction and is safe for concurrent use.
type ModelScorer struct {
	version string
	cards   map[models.EntityKind]*compiledScorecard
}

// NewModelScorer binds an artifact to the feature extractors. Unknown
// feature names and terms without a finite range are rejected here so a bad
// artifact fails at startup.
func NewModelScorer(artifact *modelstore.Artifact) (*ModelScorer, error) {
	if artifact == nil {
		return nil, fmt.Errorf("model artifact is nil")
	}
	if err := artifact.Validate(); err != nil {
		return nil, err
	}

	scorer := &ModelScorer{
		version: artifact.Version,
		cards:   make(map[models.EntityKind]*compiledScorecard),
	}

	for _, kind := range models.ValidEntityKinds() {
		card := artifact.ScorecardFor(kind)
		if card == nil {
			continue
		}

		if math.Abs(card.Intercept) > maxTermSwing {
			return nil, fmt.Errorf("%w: %s scorecard: intercept %g out of range", modelstore.ErrInvalidArtifact, kind, card.Intercept)
		}

		extractors := featuresFor(kind)
		compiled := &compiledScorecard{
			intercept: card.Intercept,
			terms:     make([]compiledTerm, 0, len(card.Terms)),
		}
		for _, term := range card.Terms {
			extract, ok := extractors[term.Feature]
			if !ok {
				return nil, fmt.Errorf("%w: %s scorecard: unknown feature %q", modelstore.ErrInvalidArtifact, kind, term.Feature)
			}
			if err := checkTermRange(term); err != nil {
				return nil, fmt.Errorf("%w: %s scorecard: %v", modelstore.ErrInvalidArtifact, kind, err)
			}
			compiled.terms = append(compiled.terms, compiledTerm{term: term, extract: extract})
		}
		scorer.cards[kind] = compiled
	}

	return scorer, nil
}

// Version implements Scorer.
func (s *ModelScorer) Version() string {
	return s.version
}

// Supports reports whether the artifact has a scorecard for kind.
func (s *ModelScorer) Supports(kind models.EntityKind) bool {
	if s == nil {
		return false
	}
	_, ok := s.cards[kind]
	return ok
}

// Score implements Scorer. It returns a *models.ModelUnavailableError when
// the artifact has no scorecard for the kind, a required signal is absent or
// the scorecard overflows.
func (s *ModelScorer) Score(record models.FeatureRecord) (float64, []models.Contribution, error) {
	if s == nil {
		return 0, nil, &models.ModelUnavailableError{Kind: record.Kind, Reason: "no model loaded"}
	}
	card, ok := s.cards[record.Kind]
	if !ok {
		return 0, nil, &models.ModelUnavailableError{Kind: record.Kind, Reason: "no scorecard for kind"}
	}
	if !record.IsConsistent() {
		return 0, nil, fmt.Errorf("feature record variant does not match kind %q", record.Kind)
	}

	contributions := make([]models.Contribution, 0, len(card.terms)+1)
	contributions = append(contributions, models.Contribution{Factor: FactorBase, Value: card.intercept})

	for _, t := range card.terms {
		value, ok := t.extract(record)
		if !ok {
			return 0, nil, &models.ModelUnavailableError{
				Kind:   record.Kind,
				Reason: "missing feature " + t.term.Feature,
			}
		}
		contributions = append(contributions, models.Contribution{
			Factor: t.term.Feature,
			Value:  t.term.Coefficient * t.term.Clip(value),
		})
	}

	raw := sumContributions(contributions)
	if !finite(raw) {
		return 0, nil, &models.ModelUnavailableError{Kind: record.Kind, Reason: "non-finite output"}
	}
	return raw, contributions, nil
}
