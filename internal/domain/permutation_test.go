package domain

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLabelPermutation(t *testing.T) {
	tests := []struct {
		name    string
		entries []PermutationEntry
		wantErr bool
	}{
		{
			name:    "bijection",
			entries: []PermutationEntry{{"X", "A"}, {"Y", "B"}},
		},
		{
			name:    "repeated presented label",
			entries: []PermutationEntry{{"X", "A"}, {"X", "B"}},
			wantErr: true,
		},
		{
			name:    "repeated true label",
			entries: []PermutationEntry{{"X", "A"}, {"Y", "A"}},
			wantErr: true,
		},
		{
			name:    "empty label",
			entries: []PermutationEntry{{"", "A"}},
			wantErr: true,
		},
		{
			name:    "no entries",
			entries: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewLabelPermutation(tt.entries)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPermutation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.entries), p.Len())
		})
	}
}

func TestLabelPermutation_BothDirections(t *testing.T) {
	p, err := NewLabelPermutation([]PermutationEntry{{"X", "A"}, {"Y", "B"}})
	require.NoError(t, err)

	trueLabel, ok := p.TrueFor("X")
	require.True(t, ok)
	assert.Equal(t, Label("A"), trueLabel)

	presented, ok := p.PresentedFor("B")
	require.True(t, ok)
	assert.Equal(t, Label("Y"), presented)

	_, ok = p.TrueFor("A")
	assert.False(t, ok, "true labels are not presented labels here")

	assert.True(t, p.IsPresented("Y"))
	assert.True(t, p.IsTrue("A"))
	assert.False(t, p.IsTrue("X"))
	assert.Equal(t, 0, p.FixedPoints())
}

func TestLabelPermutation_EntriesAreCopied(t *testing.T) {
	entries := []PermutationEntry{{"X", "A"}}
	p, err := NewLabelPermutation(entries)
	require.NoError(t, err)

	entries[0].Presented = "Z"
	got := p.Entries()
	got[0].True = "Q"

	if diff := cmp.Diff([]PermutationEntry{{"X", "A"}}, p.Entries()); diff != "" {
		t.Errorf("permutation mutated through aliasing (-want +got):\n%s", diff)
	}
}

func TestIdentityPermutation(t *testing.T) {
	p := IdentityPermutation([]Label{"A", "B", "C"})

	assert.Equal(t, 3, p.FixedPoints())
	assert.Equal(t, []Label{"A", "B", "C"}, p.Presented())
}

func TestLabelPermutation_Empty(t *testing.T) {
	var nilPerm *LabelPermutation
	assert.True(t, nilPerm.Empty())
	assert.Equal(t, 0, nilPerm.Len())
	assert.Nil(t, nilPerm.Entries())
	assert.Equal(t, "{}", nilPerm.String())

	zero := &LabelPermutation{}
	assert.True(t, zero.Empty())
	assert.Zero(t, zero.FixedPoints())
}

func TestLabelPermutation_String(t *testing.T) {
	p, err := NewLabelPermutation([]PermutationEntry{{"X", "A"}, {"Y", "B"}})
	require.NoError(t, err)
	assert.Equal(t, "{X->A, Y->B}", p.String())
}
