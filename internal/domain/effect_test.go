package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcome_Score(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    float64
		defined bool
		name    string
	}{
		{OutcomeFaithful, 1, true, "positive"},
		{OutcomeIgnored, 0, true, "neutral"},
		{OutcomeOther, -1, true, "negative"},
		{OutcomeUndefined, 0, false, "undefined"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.outcome.Score()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.defined, ok)
			assert.Equal(t, tt.name, tt.outcome.String())
		})
	}
}

func TestEffectTally(t *testing.T) {
	var tally EffectTally
	ab := EffectKey{Factual: "A", Expected: "B"}
	ca := EffectKey{Factual: "C", Expected: "A"}

	tally.Add(ab, OutcomeFaithful)
	tally.Add(ab, OutcomeFaithful)
	tally.Add(ab, OutcomeOther)
	tally.Add(ca, OutcomeIgnored)
	tally.Add(ca, OutcomeUndefined)

	assert.Equal(t, EffectCounts{Positive: 2, Negative: 1}, tally.Get(ab))
	assert.Equal(t, EffectCounts{Neutral: 1}, tally.Get(ca))
	assert.Equal(t, []EffectKey{ab, ca}, tally.Keys())

	totals := tally.Totals()
	assert.Equal(t, 4, totals.Total())
	assert.InDelta(t, 0.25, totals.Mean(), 1e-9)

	clone := tally.Clone()
	tally.Add(ab, OutcomeOther)
	assert.Equal(t, 1, clone.Get(ab).Negative, "clone must not observe later updates")
}

func TestEffectTally_CellsAndMerge(t *testing.T) {
	ab := EffectKey{Factual: "A", Expected: "B"}
	ba := EffectKey{Factual: "B", Expected: "A"}

	var first, second EffectTally
	first.Add(ba, OutcomeIgnored)
	first.Add(ab, OutcomeFaithful)
	second.Add(ab, OutcomeOther)

	assert.Equal(t, []EffectCell{
		{Key: ab, Counts: EffectCounts{Positive: 1}},
		{Key: ba, Counts: EffectCounts{Neutral: 1}},
	}, first.Cells())

	var pooled EffectTally
	pooled.Merge(first)
	pooled.Merge(second)
	pooled.Merge(EffectTally{})
	assert.Equal(t, []EffectCell{
		{Key: ab, Counts: EffectCounts{Positive: 1, Negative: 1}},
		{Key: ba, Counts: EffectCounts{Neutral: 1}},
	}, pooled.Cells())
	assert.Equal(t, EffectCounts{Positive: 1}, first.Get(ab), "merging must not alias the source")

	var empty EffectTally
	assert.Empty(t, empty.Cells())
}

func TestEffectCounts_Shares(t *testing.T) {
	var empty EffectCounts
	p, n, neg := empty.Shares()
	assert.Zero(t, p+n+neg)

	c := EffectCounts{Positive: 1, Neutral: 2, Negative: 1}
	p, n, neg = c.Shares()
	assert.InDelta(t, 0.25, p, 1e-9)
	assert.InDelta(t, 0.5, n, 1e-9)
	assert.InDelta(t, 0.25, neg, 1e-9)
}

func TestEffectKey_ColumnName(t *testing.T) {
	key := EffectKey{Factual: "Financial", Expected: "Human"}
	assert.Equal(t, "guideline_match_Financial_Human", key.ColumnName())
}
