package application

import (
	"sync"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// GuidelineMatchColumn carries the outcome of every scored prediction.
const GuidelineMatchColumn = "guideline_match"

// EffectScorer compares each prediction made under a perturbed guideline
// with the prediction made under the factual guideline for the same sample,
// and classifies whether the classifier followed the renamed guideline.
// It is safe for concurrent use.
type EffectScorer struct {
	perm    *domain.LabelPermutation
	display map[string]domain.Label
	aliases map[domain.Label]domain.Label

	mu    sync.Mutex
	tally domain.EffectTally
}

// NewEffectScorer creates a scorer for one permutation. tax resolves the
// target names the classifier emits back to labels; it may be nil when
// targets are the labels themselves. aliases rewrites legacy names that are
// not part of the permutation.
func NewEffectScorer(
	perm *domain.LabelPermutation,
	tax *domain.Taxonomy,
	aliases map[domain.Label]domain.Label,
) *EffectScorer {
	display := make(map[string]domain.Label)
	if tax != nil {
		for _, l := range tax.Labels {
			display[tax.DisplayName(l)] = l
		}
	}
	return &EffectScorer{
		perm:    perm,
		display: display,
		aliases: aliases,
	}
}

// Canonical maps a raw prediction onto the permutation's vocabulary: a
// presented or true label is kept, an aliased name is rewritten, anything
// else collapses to domain.OOVLabel.
func (s *EffectScorer) Canonical(raw string) domain.Label {
	l, ok := s.display[raw]
	if !ok {
		l = domain.Label(raw)
	}
	if s.perm.IsTrue(l) || s.perm.IsPresented(l) {
		return l
	}
	if alias, ok := s.aliases[l]; ok {
		return alias
	}
	return domain.OOVLabel
}

// Evaluate classifies one prediction without recording it. The key is only
// meaningful when ok is true, i.e. the factual prediction was a true label.
func (s *EffectScorer) Evaluate(predicted, factual string) (outcome domain.Outcome, key domain.EffectKey, ok bool) {
	f := s.Canonical(factual)
	p := s.Canonical(predicted)

	if !s.perm.IsTrue(f) {
		if p == f {
			return domain.OutcomeIgnored, domain.EffectKey{}, false
		}
		return domain.OutcomeUndefined, domain.EffectKey{}, false
	}

	expected, _ := s.perm.PresentedFor(f)
	key = domain.EffectKey{Factual: f, Expected: expected}
	switch {
	case p == f:
		// Takes precedence when expected == f: the guideline did not move.
		return domain.OutcomeIgnored, key, true
	case p == expected:
		return domain.OutcomeFaithful, key, true
	default:
		return domain.OutcomeOther, key, true
	}
}

// Score classifies one prediction and records it in the tally when the
// factual prediction was a true label.
func (s *EffectScorer) Score(predicted, factual string) domain.Outcome {
	outcome, _, _ := s.record(predicted, factual)
	return outcome
}

func (s *EffectScorer) record(predicted, factual string) (domain.Outcome, domain.EffectKey, bool) {
	outcome, key, ok := s.Evaluate(predicted, factual)
	if ok {
		s.mu.Lock()
		s.tally.Add(key, outcome)
		s.mu.Unlock()
	}
	return outcome, key, ok
}

// Tally returns a snapshot of the recorded outcomes.
func (s *EffectScorer) Tally() domain.EffectTally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tally.Clone()
}

// Columns lists the per-sample columns the scorer can emit: the overall
// match followed by one column per (true, presented) entry.
func (s *EffectScorer) Columns() []string {
	cols := []string{GuidelineMatchColumn}
	for _, e := range s.perm.Entries() {
		cols = append(cols, domain.EffectKey{Factual: e.True, Expected: e.Presented}.ColumnName())
	}
	return cols
}

// AsMetric binds the scorer to a factual run so the classifier can evaluate
// it per prediction.
func (s *EffectScorer) AsMetric(factual *ports.ClassificationResult) ports.PredictionMetric {
	return &effectMetric{scorer: s, factual: factual}
}

type effectMetric struct {
	scorer  *EffectScorer
	factual *ports.ClassificationResult
}

var _ ports.PredictionMetric = (*effectMetric)(nil)

func (m *effectMetric) Columns() []string { return m.scorer.Columns() }

func (m *effectMetric) Measure(index int, prediction, reference string) map[string]float64 {
	factual, ok := m.factual.PredictedAt(index)
	if !ok {
		return nil
	}
	outcome, key, keyed := m.scorer.record(prediction, factual)
	score, defined := outcome.Score()
	if !defined {
		return nil
	}

	out := map[string]float64{GuidelineMatchColumn: score}
	if keyed {
		out[key.ColumnName()] = score
	}
	return out
}
