// Package domain contains pure, dependency-free models for guideline
// perturbation: taxonomies, label permutations, effect outcomes and the
// permutation metric table.
package domain

import "fmt"

// Label is a category name in a classification taxonomy.
type Label string

// OOVLabel is the sentinel every unrecognized prediction collapses to.
const OOVLabel Label = "[OOV_LABEL]"

// DefaultHeaderPrompt introduces the definition bullets when a concept does
// not configure its own header.
const DefaultHeaderPrompt = "Consider the following concept categories:"

// Taxonomy is the guideline material for one (domain, concept) pair. It is
// loaded once by the guideline store and never mutated afterwards.
type Taxonomy struct {
	// Domain is the corpus family, e.g. "financial".
	Domain string `json:"domain"`

	// Concept selects one label scheme within the domain, e.g. "capital".
	Concept string `json:"concept"`

	// Labels is the label set in taxonomy order. Permutation generation
	// iterates labels in this order.
	Labels []Label `json:"labels"`

	// Display maps a label to the target name the classifier should emit.
	// Labels without an entry display as themselves.
	Display map[Label]string `json:"display,omitempty"`

	// Definitions holds the descriptive text for each label. It may be nil
	// for concepts that only ship examples.
	Definitions map[Label]string `json:"definitions,omitempty"`

	// Examples holds few-shot exemplar texts per label. It may be sparse.
	Examples map[Label][]string `json:"examples,omitempty"`

	// HeaderPrompt is prepended to the definition bullets when task
	// instructions are enabled.
	HeaderPrompt string `json:"header_prompt,omitempty"`
}

// DisplayName returns the classifier-facing name of l.
func (t *Taxonomy) DisplayName(l Label) string {
	if name, ok := t.Display[l]; ok && name != "" {
		return name
	}
	return string(l)
}

// Definition returns the definition of l and whether one exists.
func (t *Taxonomy) Definition(l Label) (string, bool) {
	def, ok := t.Definitions[l]
	return def, ok
}

// Validate checks the structural invariants of the taxonomy: a non-empty,
// duplicate-free label set, and definitions that are either absent or total
// over the label set.
func (t *Taxonomy) Validate() error {
	verr := NewValidationError(fmt.Sprintf("taxonomy %s/%s", t.Domain, t.Concept))

	if len(t.Labels) == 0 {
		verr.AddError("label set is empty")
	}

	seen := make(map[Label]struct{}, len(t.Labels))
	for _, l := range t.Labels {
		if l == "" {
			verr.AddError("empty label")
			continue
		}
		if _, dup := seen[l]; dup {
			verr.AddError(fmt.Sprintf("duplicate label %q", l))
		}
		seen[l] = struct{}{}
	}

	if len(t.Definitions) > 0 {
		for _, l := range t.Labels {
			if _, ok := t.Definitions[l]; !ok {
				verr.AddError(fmt.Sprintf("label %q has no definition", l))
			}
		}
	}

	for l := range t.Examples {
		if _, ok := seen[l]; !ok {
			verr.AddError(fmt.Sprintf("examples reference unknown label %q", l))
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}
