package application

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

func TestEffectScorer_Score(t *testing.T) {
	// X carries A's guideline, Y carries B's.
	p := mustPermutation(t, "X", "A", "Y", "B")

	tests := []struct {
		name      string
		predicted string
		factual   string
		want      domain.Outcome
		keyed     bool
		key       domain.EffectKey
	}{
		{"follows renamed guideline", "X", "A", domain.OutcomeFaithful, true, domain.EffectKey{Factual: "A", Expected: "X"}},
		{"ignores guideline", "A", "A", domain.OutcomeIgnored, true, domain.EffectKey{Factual: "A", Expected: "X"}},
		{"other label", "Y", "A", domain.OutcomeOther, true, domain.EffectKey{Factual: "A", Expected: "X"}},
		{"unknown prediction", "banana", "B", domain.OutcomeOther, true, domain.EffectKey{Factual: "B", Expected: "Y"}},
		{"factual out of vocabulary, same", "Q", "R", domain.OutcomeIgnored, false, domain.EffectKey{}},
		{"factual out of vocabulary, different", "X", "R", domain.OutcomeUndefined, false, domain.EffectKey{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewEffectScorer(p, nil, nil)
			outcome, key, keyed := s.Evaluate(tt.predicted, tt.factual)
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, tt.keyed, keyed)
			if tt.keyed {
				assert.Equal(t, tt.key, key)
			}
		})
	}
}

func TestEffectScorer_IgnoredWinsOnFixedPoint(t *testing.T) {
	p := mustPermutation(t, "A", "A", "C", "B", "B", "C")
	s := NewEffectScorer(p, nil, nil)

	// expected == factual == predicted.
	assert.Equal(t, domain.OutcomeIgnored, s.Score("A", "A"))
	assert.Equal(t, domain.OutcomeOther, s.Score("B", "A"))
}

func TestEffectScorer_Canonical(t *testing.T) {
	p := mustPermutation(t, "Motivation", "Motivation", "Other", "Other")
	tax := &domain.Taxonomy{
		Labels:  []domain.Label{"Motivation", "Other"},
		Display: map[domain.Label]string{"Other": "Something else"},
	}
	s := NewEffectScorer(p, tax, map[domain.Label]domain.Label{"Objective": "Motivation"})

	assert.Equal(t, domain.Label("Motivation"), s.Canonical("Motivation"))
	assert.Equal(t, domain.Label("Motivation"), s.Canonical("Objective"))
	assert.Equal(t, domain.Label("Other"), s.Canonical("Something else"))
	assert.Equal(t, domain.OOVLabel, s.Canonical("Nonsense"))

	// Both sides collapse to OOV and agree.
	assert.Equal(t, domain.OutcomeIgnored, s.Score("foo", "bar"))
	assert.Equal(t, domain.OutcomeIgnored, s.Score("Objective", "Motivation"))
}

func TestEffectScorer_TallyConcurrent(t *testing.T) {
	p := mustPermutation(t, "B", "A", "A", "B")
	s := NewEffectScorer(p, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); s.Score("B", "A") }()
		go func() { defer wg.Done(); s.Score("A", "A") }()
		go func() { defer wg.Done(); s.Score("zzz", "qqq") }()
	}
	wg.Wait()

	tally := s.Tally()
	got := tally.Get(domain.EffectKey{Factual: "A", Expected: "B"})
	assert.Equal(t, domain.EffectCounts{Positive: 50, Neutral: 50}, got)
	assert.Equal(t, 100, tally.Totals().Total(), "out-of-vocabulary factual outcomes are not tallied")
}

func TestEffectScorer_AsMetric(t *testing.T) {
	p := mustPermutation(t, "X", "A", "Y", "B")
	s := NewEffectScorer(p, nil, nil)
	factual := &ports.ClassificationResult{Predictions: []ports.Prediction{
		{Index: 0, Predicted: "A"},
		{Index: 1, Predicted: "B"},
		{Index: 2, Predicted: "nope"},
	}}
	m := s.AsMetric(factual)

	assert.Equal(t, []string{"guideline_match", "guideline_match_A_X", "guideline_match_B_Y"}, m.Columns())

	got := m.Measure(0, "X", "A")
	assert.Equal(t, map[string]float64{"guideline_match": 1, "guideline_match_A_X": 1}, got)

	got = m.Measure(1, "A", "B")
	assert.Equal(t, map[string]float64{"guideline_match": -1, "guideline_match_B_Y": -1}, got)

	got = m.Measure(2, "also nope", "")
	assert.Equal(t, map[string]float64{"guideline_match": 0}, got)

	assert.Nil(t, m.Measure(2, "X", ""), "undefined outcomes emit nothing")
	assert.Nil(t, m.Measure(9, "X", ""), "samples without a factual prediction emit nothing")

	tally := s.Tally()
	require.Len(t, tally.Keys(), 2)
	assert.Equal(t, domain.EffectCounts{Positive: 1, Negative: 1}, tally.Totals())
}
