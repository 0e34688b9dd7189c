package types

import (
	"fmt"
	"math"
	"regexp"
	"time"
)

// WeightTolerance is the allowed deviation of an experiment's weight sum from 1.
const WeightTolerance = 1e-9

// MaxIDLength is the maximum length of experiment and variant ids.
const MaxIDLength = 128

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ExperimentStatus is the lifecycle status of an experiment.
//
// The core honors the status but never transitions it; retiring an experiment
// is an administrative action performed outside the engine.
type ExperimentStatus string

const (
	// StatusActive accepts assignments and events. The empty status is treated as active.
	StatusActive ExperimentStatus = "active"

	// StatusRetired no longer serves assignments. Late events are still counted.
	StatusRetired ExperimentStatus = "retired"
)

// Variant is one candidate version of content being tested.
type Variant struct {
	// ID is stable for the lifetime of the experiment.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label.
	Name string `json:"name" yaml:"name"`

	// ContentRef is an opaque content string or blob reference, never interpreted.
	ContentRef string `json:"contentRef,omitempty" yaml:"contentRef"`

	// Impressions counts how many times the variant was shown.
	Impressions uint64 `json:"impressions" yaml:"impressions"`

	// Conversions counts goal completions attributed to the variant.
	// Not bounded by Impressions.
	Conversions uint64 `json:"conversions" yaml:"conversions"`

	// Weight is the probability mass for fresh visitors, in [0,1].
	Weight float64 `json:"weight" yaml:"weight"`
}

// Rate returns the conversion rate with impressions floored at 1.
//
// Returns:
//   - float64: conversions / max(1, impressions)
func (v Variant) Rate() float64 {
	impressions := v.Impressions
	if impressions < 1 {
		impressions = 1
	}

	return float64(v.Conversions) / float64(impressions)
}

// Experiment is the aggregate the engine reads and mutates.
type Experiment struct {
	// ID uniquely identifies the experiment.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label.
	Name string `json:"name,omitempty" yaml:"name"`

	// Selector describes where content is injected. Opaque to the engine.
	Selector string `json:"selector,omitempty" yaml:"selector"`

	// GoalSelector describes what constitutes a conversion. Opaque to the engine.
	GoalSelector string `json:"goalSelector,omitempty" yaml:"goalSelector"`

	// Status is the lifecycle status (empty means active).
	Status ExperimentStatus `json:"status,omitempty" yaml:"status"`

	// Variants is the ordered variant list. Order breaks reallocation ties.
	Variants []Variant `json:"variants" yaml:"variants"`

	CreatedAt time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"-"`

	// Revision is the optimistic-concurrency stamp assigned by the repository.
	// It is tracked out-of-band and never serialized with the record.
	Revision uint64 `json:"-" yaml:"-"`
}

// IsActive reports whether the experiment serves assignments.
func (e *Experiment) IsActive() bool {
	return e.Status == "" || e.Status == StatusActive
}

// VariantIndex returns the ordinal index of the variant with the given id.
//
// Returns:
//   - int: Index into Variants, or -1 when absent
func (e *Experiment) VariantIndex(variantID string) int {
	for i := range e.Variants {
		if e.Variants[i].ID == variantID {
			return i
		}
	}

	return -1
}

// TotalWeight returns the sum of all variant weights.
func (e *Experiment) TotalWeight() float64 {
	total := 0.0
	for _, v := range e.Variants {
		total += v.Weight
	}

	return total
}

// Clone returns a deep copy of the experiment.
func (e *Experiment) Clone() *Experiment {
	if e == nil {
		return nil
	}

	c := *e
	c.Variants = make([]Variant, len(e.Variants))
	copy(c.Variants, e.Variants)

	return &c
}

// Validate checks the structural invariants required at creation time.
//
// Rules:
//   - ID is 1-128 characters of [A-Za-z0-9_-]
//   - At least one variant (ErrNoVariants)
//   - Variant ids valid and unique
//   - Weights are finite and non-negative
//   - Status is empty, active or retired
//
// Returns:
//   - error: Wraps ErrInvalidExperiment (and ErrNoVariants when applicable), nil if valid
func (e *Experiment) Validate() error {
	if !ValidID(e.ID) {
		return fmt.Errorf("%w: id must be 1-%d characters of [A-Za-z0-9_-]", ErrInvalidExperiment, MaxIDLength)
	}

	if e.Status != "" && e.Status != StatusActive && e.Status != StatusRetired {
		return fmt.Errorf("%w: experiment %q has unknown status %q", ErrInvalidExperiment, e.ID, e.Status)
	}

	if len(e.Variants) == 0 {
		return fmt.Errorf("%w: experiment %q: %w", ErrInvalidExperiment, e.ID, ErrNoVariants)
	}

	seen := make(map[string]struct{}, len(e.Variants))
	for i, v := range e.Variants {
		if !ValidID(v.ID) {
			return fmt.Errorf("%w: experiment %q variant #%d has an invalid id", ErrInvalidExperiment, e.ID, i)
		}
		if _, dup := seen[v.ID]; dup {
			return fmt.Errorf("%w: experiment %q has duplicate variant %q", ErrInvalidExperiment, e.ID, v.ID)
		}
		seen[v.ID] = struct{}{}

		if math.IsNaN(v.Weight) || math.IsInf(v.Weight, 0) || v.Weight < 0 {
			return fmt.Errorf("%w: experiment %q variant %q has weight %v", ErrInvalidExperiment, e.ID, v.ID, v.Weight)
		}
	}

	return nil
}

// NormalizeWeights rescales weights in place so they sum to 1.
//
// When every weight is zero the variants receive a uniform split. The last
// variant absorbs floating point residue so the sum stays within WeightTolerance.
func (e *Experiment) NormalizeWeights() {
	n := len(e.Variants)
	if n == 0 {
		return
	}

	total := e.TotalWeight()
	if total <= 0 {
		for i := range e.Variants {
			e.Variants[i].Weight = 1.0 / float64(n)
		}
	} else {
		for i := range e.Variants {
			e.Variants[i].Weight /= total
		}
	}

	residue := 1.0 - e.TotalWeight()
	if residue != 0 {
		last := &e.Variants[n-1]
		last.Weight = math.Max(0, last.Weight+residue)
	}
}

// ValidID reports whether id can be used as an experiment or variant id.
func ValidID(id string) bool {
	return len(id) > 0 && len(id) <= MaxIDLength && idPattern.MatchString(id)
}

// Choice is the result of assigning a visitor to a variant.
type Choice struct {
	// ExperimentID is the experiment the choice belongs to.
	ExperimentID string `json:"experimentId"`

	// VariantID is the variant the visitor sees.
	VariantID string `json:"variantId"`

	// Token is the visitor token to resubmit on later visits.
	Token string `json:"token"`

	// Fresh is true when the variant was sampled rather than read from the sticky store.
	Fresh bool `json:"-"`
}
