package domain

import (
	"fmt"
	"strings"
)

// PermutationEntry pairs the label shown to the classifier with the true
// label whose guideline material it carries.
type PermutationEntry struct {
	Presented Label `json:"presented"`
	True      Label `json:"true"`
}

// LabelPermutation is an immutable bijection from presented labels to true
// labels. Both directions are indexed at construction so lookups never
// rebuild an inverse map. The entry order is significant: it is the order
// in which sections are rendered before any shuffling.
//
// The zero value is the empty permutation, which generators return to
// signal that no further candidates exist.
type LabelPermutation struct {
	entries []PermutationEntry
	forward map[Label]Label
	inverse map[Label]Label
}

// NewLabelPermutation builds a permutation from ordered entries. It fails
// when a presented label or a true label repeats, since either would make
// one of the two directions ambiguous.
func NewLabelPermutation(entries []PermutationEntry) (*LabelPermutation, error) {
	p := &LabelPermutation{
		entries: make([]PermutationEntry, len(entries)),
		forward: make(map[Label]Label, len(entries)),
		inverse: make(map[Label]Label, len(entries)),
	}
	copy(p.entries, entries)

	for _, e := range entries {
		if e.Presented == "" || e.True == "" {
			return nil, fmt.Errorf("%w: empty label in entry %s->%s", ErrInvalidPermutation, e.Presented, e.True)
		}
		if prev, dup := p.forward[e.Presented]; dup {
			return nil, fmt.Errorf("%w: presented label %q maps to both %q and %q",
				ErrInvalidPermutation, e.Presented, prev, e.True)
		}
		if prev, dup := p.inverse[e.True]; dup {
			return nil, fmt.Errorf("%w: true label %q is presented as both %q and %q",
				ErrInvalidPermutation, e.True, prev, e.Presented)
		}
		p.forward[e.Presented] = e.True
		p.inverse[e.True] = e.Presented
	}

	return p, nil
}

// IdentityPermutation presents every label under its own name.
func IdentityPermutation(labels []Label) *LabelPermutation {
	entries := make([]PermutationEntry, len(labels))
	for i, l := range labels {
		entries[i] = PermutationEntry{Presented: l, True: l}
	}
	p, err := NewLabelPermutation(entries)
	if err != nil {
		// Duplicate labels are rejected by Taxonomy.Validate before this point.
		panic(err)
	}
	return p
}

// Len returns the number of entries. It is safe to call on a nil receiver.
func (p *LabelPermutation) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Empty reports whether the permutation signals exhaustion.
func (p *LabelPermutation) Empty() bool { return p.Len() == 0 }

// Entries returns a copy of the ordered entries.
func (p *LabelPermutation) Entries() []PermutationEntry {
	if p == nil {
		return nil
	}
	out := make([]PermutationEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// TrueFor returns the true label carried by a presented label.
func (p *LabelPermutation) TrueFor(presented Label) (Label, bool) {
	if p == nil {
		return "", false
	}
	l, ok := p.forward[presented]
	return l, ok
}

// PresentedFor returns the presented label that carries the true label.
func (p *LabelPermutation) PresentedFor(trueLabel Label) (Label, bool) {
	if p == nil {
		return "", false
	}
	l, ok := p.inverse[trueLabel]
	return l, ok
}

// IsPresented reports whether l is one of the presented labels.
func (p *LabelPermutation) IsPresented(l Label) bool {
	_, ok := p.TrueFor(l)
	return ok
}

// IsTrue reports whether l is one of the true labels.
func (p *LabelPermutation) IsTrue(l Label) bool {
	_, ok := p.PresentedFor(l)
	return ok
}

// Presented returns the presented labels in entry order.
func (p *LabelPermutation) Presented() []Label {
	out := make([]Label, 0, p.Len())
	for _, e := range p.Entries() {
		out = append(out, e.Presented)
	}
	return out
}

// FixedPoints counts the entries whose presented label is the true label.
func (p *LabelPermutation) FixedPoints() int {
	n := 0
	for _, e := range p.Entries() {
		if e.Presented == e.True {
			n++
		}
	}
	return n
}

// String renders the mapping as "presented->true" pairs in entry order.
func (p *LabelPermutation) String() string {
	if p.Empty() {
		return "{}"
	}
	parts := make([]string, 0, p.Len())
	for _, e := range p.entries {
		parts = append(parts, fmt.Sprintf("%s->%s", e.Presented, e.True))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
