// Package modelstore loads scorecard model artifacts from disk or S3.
//
// An artifact is a YAML (or JSON) document holding one linear scorecard per
// entity kind:
//
//	version: model/v1
//	individual:
//	  intercept: 420
//	  terms:
//	    - feature: log_yearly_income
//	      coefficient: 14.5
//	      max: 14
//
// Artifacts are loaded once at process start and never mutated afterwards.
package modelstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"credit-risk-engine/internal/models"
)

// DefaultVersion is used when an artifact omits its version.
const DefaultVersion = "model/v1"

var (
	ErrEmptyArtifact   = errors.New("model artifact is empty")
	ErrNoScorecards    = errors.New("model artifact defines no scorecard")
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// Artifact is a parsed model file.
type Artifact struct {
	Version    string     `yaml:"version" json:"version" validate:"required,max=64"`
	Individual *Scorecard `yaml:"individual,omitempty" json:"individual,omitempty"`
	Company    *Scorecard `yaml:"company,omitempty" json:"company,omitempty"`
	Source     string     `yaml:"-" json:"-"`
}

// Scorecard is a linear points model: intercept plus coefficient times the
// clipped feature value for each term.
type Scorecard struct {
	Intercept float64 `yaml:"intercept" json:"intercept"`
	Terms     []Term  `yaml:"terms" json:"terms" validate:"required,min=1,dive"`
}

// Term is one weighted feature of a scorecard.
type Term struct {
	Feature     string   `yaml:"feature" json:"feature" validate:"required"`
	Coefficient float64  `yaml:"coefficient" json:"coefficient"`
	Min         *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max         *float64 `yaml:"max,omitempty" json:"max,omitempty"`
}

// Clip bounds value to the term's optional [Min, Max] window.
func (t Term) Clip(value float64) float64 {
	if t.Min != nil && value < *t.Min {
		value = *t.Min
	}
	if t.Max != nil && value > *t.Max {
		value = *t.Max
	}
	return value
}

// ScorecardFor returns the scorecard for kind, or nil.
func (a *Artifact) ScorecardFor(kind models.EntityKind) *Scorecard {
	if a == nil {
		return nil
	}
	switch kind {
	case models.KindIndividual:
		return a.Individual
	case models.KindCompany:
		return a.Company
	default:
		return nil
	}
}

var validate = validator.New()

// Validate checks the artifact structure. Feature names are checked by the
// scorer that consumes the artifact.
func (a *Artifact) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if a.Individual == nil && a.Company == nil {
		return ErrNoScorecards
	}

	for _, kind := range models.ValidEntityKinds() {
		card := a.ScorecardFor(kind)
		if card == nil {
			continue
		}
		if err := validate.Struct(card); err != nil {
			return fmt.Errorf("%w: %s scorecard: %v", ErrInvalidArtifact, kind, err)
		}
		if err := card.check(); err != nil {
			return fmt.Errorf("%w: %s scorecard: %v", ErrInvalidArtifact, kind, err)
		}
	}
	return nil
}

func (c *Scorecard) check() error {
	if !finite(c.Intercept) {
		return errors.New("intercept is not finite")
	}

	seen := make(map[string]bool, len(c.Terms))
	for _, term := range c.Terms {
		if seen[term.Feature] {
			return fmt.Errorf("duplicate term %q", term.Feature)
		}
		seen[term.Feature] = true

		if !finite(term.Coefficient) {
			return fmt.Errorf("term %q: coefficient is not finite", term.Feature)
		}
		if term.Min != nil && !finite(*term.Min) {
			return fmt.Errorf("term %q: min is not finite", term.Feature)
		}
		if term.Max != nil && !finite(*term.Max) {
			return fmt.Errorf("term %q: max is not finite", term.Feature)
		}
		if term.Min != nil && term.Max != nil && *term.Min > *term.Max {
			return fmt.Errorf("term %q: min greater than max", term.Feature)
		}
	}
	return nil
}

// Parse decodes and validates an artifact. JSON documents are accepted as
// YAML. Unknown keys are rejected so typos do not silently drop terms.
func Parse(data []byte) (*Artifact, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyArtifact
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var artifact Artifact
	if err := decoder.Decode(&artifact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if artifact.Version == "" {
		artifact.Version = DefaultVersion
	}

	if err := artifact.Validate(); err != nil {
		return nil, err
	}
	return &artifact, nil
}

// LoadFile reads an artifact from the local filesystem.
func LoadFile(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	artifact, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model artifact %s: %w", path, err)
	}
	artifact.Source = path
	return artifact, nil
}

// ObjectFetcher downloads an object body from a bucket.
type ObjectFetcher interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// LoadS3 downloads an artifact from object storage.
func LoadS3(ctx context.Context, fetcher ObjectFetcher, bucket, key string) (*Artifact, error) {
	data, err := fetcher.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download model artifact s3://%s/%s: %w", bucket, key, err)
	}

	artifact, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model artifact s3://%s/%s: %w", bucket, key, err)
	}
	artifact.Source = "s3://" + bucket + "/" + key
	return artifact, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
