package domain

import (
	"fmt"
	"strings"
)

// NoisePolicy selects how presented labels are derived from the true
// taxonomy labels for a single evaluation run.
type NoisePolicy string

const (
	// NoiseNone presents every label under its own name.
	NoiseNone NoisePolicy = "none"
	// NoiseNonfactual reassigns every label to a different label of the same
	// taxonomy so that no label keeps its own definition.
	NoiseNonfactual NoisePolicy = "nonfactual"
	// NoiseOOD replaces every label with a nonsense decoy token.
	NoiseOOD NoisePolicy = "ood"
	// NoiseRandom draws one of the |L|! orderings of the label names and
	// assigns them to the true labels in taxonomy order.
	NoiseRandom NoisePolicy = "random"
)

// NoisePolicies lists every recognized noise policy.
var NoisePolicies = []NoisePolicy{NoiseNone, NoiseNonfactual, NoiseOOD, NoiseRandom}

// ParseNoisePolicy converts a configuration string to a NoisePolicy.
// The empty string and "factual" are accepted as aliases of NoiseNone.
func ParseNoisePolicy(s string) (NoisePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "factual":
		return NoiseNone, nil
	case "nonfactual":
		return NoiseNonfactual, nil
	case "ood":
		return NoiseOOD, nil
	case "random":
		return NoiseRandom, nil
	default:
		return "", fmt.Errorf("unknown noise policy %q", s)
	}
}

// Valid reports whether p is one of the recognized policies.
func (p NoisePolicy) Valid() bool {
	for _, known := range NoisePolicies {
		if p == known {
			return true
		}
	}
	return false
}

// Relabels reports whether the policy maps labels onto other real labels of
// the taxonomy. Only these policies have meaningful definition distances and
// a factual baseline to compare against.
func (p NoisePolicy) Relabels() bool {
	return p == NoiseRandom || p == NoiseNonfactual
}

// RunTag returns the fragment used in run identifiers. The identity policy
// contributes nothing.
func (p NoisePolicy) RunTag() string {
	if p == NoiseNone {
		return ""
	}
	return string(p)
}

// SectionKind names one block of guideline text rendered into a context
// prompt.
type SectionKind string

const (
	// SectionDefinition renders one bullet per label with its definition.
	SectionDefinition SectionKind = "definition"
	// SectionExamples renders few-shot exemplars per label.
	SectionExamples SectionKind = "examples"
)

// SectionKinds lists every recognized section kind.
var SectionKinds = []SectionKind{SectionDefinition, SectionExamples}

// ParseSectionKind converts a configuration string to a SectionKind.
func ParseSectionKind(s string) (SectionKind, error) {
	switch SectionKind(strings.ToLower(strings.TrimSpace(s))) {
	case SectionDefinition:
		return SectionDefinition, nil
	case SectionExamples:
		return SectionExamples, nil
	default:
		return "", fmt.Errorf("unknown guideline section %q", s)
	}
}

// DistanceMetric selects the per-entry similarity used by the distance
// scorer.
type DistanceMetric string

const (
	// MetricExact scores 1 when the presented label is the true label.
	MetricExact DistanceMetric = "exact"
	// MetricEdit is the normalized Levenshtein similarity of two definitions.
	MetricEdit DistanceMetric = "edit"
	// MetricRouge1 is the unigram overlap F-measure of two definitions.
	MetricRouge1 DistanceMetric = "rouge1"
	// MetricRouge2 is the bigram overlap F-measure of two definitions.
	MetricRouge2 DistanceMetric = "rouge2"
	// MetricRougeL is the longest-common-subsequence F-measure.
	MetricRougeL DistanceMetric = "rougeL"
)

// DistanceMetrics lists every recognized distance metric.
var DistanceMetrics = []DistanceMetric{MetricExact, MetricEdit, MetricRouge1, MetricRouge2, MetricRougeL}

// ParseDistanceMetric converts a configuration string to a DistanceMetric.
func ParseDistanceMetric(s string) (DistanceMetric, error) {
	for _, m := range DistanceMetrics {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// ColumnName is the header used for the metric in the permutation table.
func (m DistanceMetric) ColumnName() string {
	return "permutation_" + string(m) + "_distance"
}
