package domain

import (
	"fmt"
	"sort"
)

// Outcome classifies one noisy prediction against its factual counterpart.
type Outcome int

const (
	// OutcomeUndefined means the prediction could not be scored.
	OutcomeUndefined Outcome = iota
	// OutcomeFaithful (+1) means the model followed the injected definition.
	OutcomeFaithful
	// OutcomeIgnored (0) means the model kept its factual answer.
	OutcomeIgnored
	// OutcomeOther (-1) means the model moved somewhere the corruption did
	// not point to.
	OutcomeOther
)

// Score returns the numeric value of the outcome and false when the outcome
// is undefined.
func (o Outcome) Score() (float64, bool) {
	switch o {
	case OutcomeFaithful:
		return 1, true
	case OutcomeIgnored:
		return 0, true
	case OutcomeOther:
		return -1, true
	default:
		return 0, false
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeFaithful:
		return "positive"
	case OutcomeIgnored:
		return "neutral"
	case OutcomeOther:
		return "negative"
	default:
		return "undefined"
	}
}

// EffectKey identifies one (factual prediction, expected renamed label) cell
// of the guideline-effect breakdown.
type EffectKey struct {
	Factual  Label `json:"factual"`
	Expected Label `json:"expected"`
}

// ColumnName is the per-sample column carrying outcomes for this cell.
func (k EffectKey) ColumnName() string {
	return fmt.Sprintf("guideline_match_%s_%s", k.Factual, k.Expected)
}

// EffectCounts counts scored outcomes.
type EffectCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Add increments the counter matching o. Undefined outcomes are ignored.
func (c *EffectCounts) Add(o Outcome) {
	switch o {
	case OutcomeFaithful:
		c.Positive++
	case OutcomeIgnored:
		c.Neutral++
	case OutcomeOther:
		c.Negative++
	}
}

// Merge adds the counts of other into c.
func (c *EffectCounts) Merge(other EffectCounts) {
	c.Positive += other.Positive
	c.Neutral += other.Neutral
	c.Negative += other.Negative
}

// Total returns the number of scored outcomes.
func (c EffectCounts) Total() int { return c.Positive + c.Neutral + c.Negative }

// Shares returns the positive, neutral and negative fractions of the total.
// All shares are zero when nothing was scored.
func (c EffectCounts) Shares() (positive, neutral, negative float64) {
	total := c.Total()
	if total == 0 {
		return 0, 0, 0
	}
	t := float64(total)
	return float64(c.Positive) / t, float64(c.Neutral) / t, float64(c.Negative) / t
}

// Mean returns the average outcome value in [-1, 1].
func (c EffectCounts) Mean() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Positive-c.Negative) / float64(total)
}

// EffectTally accumulates outcomes per EffectKey. The zero value is ready to
// use. It is not safe for concurrent use; scorers that share a tally across
// goroutines guard it themselves.
type EffectTally struct {
	cells map[EffectKey]EffectCounts
}

// Add records outcome o under key.
func (t *EffectTally) Add(key EffectKey, o Outcome) {
	if o == OutcomeUndefined {
		return
	}
	if t.cells == nil {
		t.cells = make(map[EffectKey]EffectCounts)
	}
	c := t.cells[key]
	c.Add(o)
	t.cells[key] = c
}

// Get returns the counts recorded under key.
func (t *EffectTally) Get(key EffectKey) EffectCounts { return t.cells[key] }

// Keys returns the recorded keys sorted by factual then expected label.
func (t *EffectTally) Keys() []EffectKey {
	keys := make([]EffectKey, 0, len(t.cells))
	for k := range t.cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Factual != keys[j].Factual {
			return keys[i].Factual < keys[j].Factual
		}
		return keys[i].Expected < keys[j].Expected
	})
	return keys
}

// EffectCell is one row of the guideline-effect breakdown.
type EffectCell struct {
	Key    EffectKey    `json:"key"`
	Counts EffectCounts `json:"counts"`
}

// Cells returns the breakdown in Keys order.
func (t *EffectTally) Cells() []EffectCell {
	keys := t.Keys()
	cells := make([]EffectCell, len(keys))
	for i, k := range keys {
		cells[i] = EffectCell{Key: k, Counts: t.Get(k)}
	}
	return cells
}

// Merge adds every cell of other into t.
func (t *EffectTally) Merge(other EffectTally) {
	if len(other.cells) == 0 {
		return
	}
	if t.cells == nil {
		t.cells = make(map[EffectKey]EffectCounts, len(other.cells))
	}
	for k, c := range other.cells {
		merged := t.cells[k]
		merged.Merge(c)
		t.cells[k] = merged
	}
}

// Totals sums all cells.
func (t *EffectTally) Totals() EffectCounts {
	var total EffectCounts
	for _, c := range t.cells {
		total.Merge(c)
	}
	return total
}

// Clone returns an independent copy of the tally.
func (t *EffectTally) Clone() EffectTally {
	out := EffectTally{cells: make(map[EffectKey]EffectCounts, len(t.cells))}
	for k, c := range t.cells {
		out.cells[k] = c
	}
	return out
}
