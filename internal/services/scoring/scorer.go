// Package scoring implements the credit risk scoring engine: the rule-based
// and model scorers, the explanation builder and the dispatcher that ties
// them together.
package scoring

import (
	"fmt"
	"strings"

	"credit-risk-engine/internal/models"
)

// RuleVersion identifies the rule-based baseline scorer.
const RuleVersion = "rule/v1"

// DefaultPolicyVersion is the policy used when none is configured.
const DefaultPolicyVersion = "policy/v1"

// epsilon floors ratio denominators.
const epsilon = 1e-9

// Scorer is the capability shared by every scoring strategy. Score returns a
// raw, unclamped score together with the named terms that sum to it.
// Implementations must be safe for concurrent use.
type Scorer interface {
	Version() string
	Score(record models.FeatureRecord) (float64, []models.Contribution, error)
}

// Strategy selects the scorer used for an entity kind.
type Strategy string

const (
	StrategyRule  Strategy = "rule"
	StrategyModel Strategy = "model"
)

// ParseStrategy parses a configured strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyRule:
		return StrategyRule, nil
	case StrategyModel:
		return StrategyModel, nil
	default:
		return "", fmt.Errorf("unknown scoring strategy %q", s)
	}
}

// Policy is the versioned scorer selection policy. A model strategy means
// "try the model scorer and fall back to rules when it is unavailable".
type Policy struct {
	Version    string
	Individual Strategy
	Company    Strategy
}

// DefaultPolicy prefers the model scorer for both kinds.
func DefaultPolicy() Policy {
	return Policy{
		Version:    DefaultPolicyVersion,
		Individual: StrategyModel,
		Company:    StrategyModel,
	}
}

// StrategyFor returns the strategy configured for kind.
func (p Policy) StrategyFor(kind models.EntityKind) Strategy {
	switch kind {
	case models.KindIndividual:
		return p.Individual
	case models.KindCompany:
		return p.Company
	default:
		return StrategyRule
	}
}

// Validate checks that every kind has a known strategy.
func (p Policy) Validate() error {
	if p.Version == "" {
		return fmt.Errorf("policy version is required")
	}
	for _, kind := range models.ValidEntityKinds() {
		switch p.StrategyFor(kind) {
		case StrategyRule, StrategyModel:
		default:
			return fmt.Errorf("policy %s: unknown strategy %q for %s", p.Version, p.StrategyFor(kind), kind)
		}
	}
	return nil
}

// ratio divides with an epsilon floor on the denominator.
func ratio(numerator, denominator float64) float64 {
	if denominator < epsilon {
		denominator = epsilon
	}
	return numerator / denominator
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
