package application

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// wordOverlap scores the share of shared words, enough to check averaging.
type wordOverlap struct {
	calls int
	err   error
}

func (w *wordOverlap) Similarity(a, b string, metric domain.DistanceMetric) (float64, error) {
	w.calls++
	if w.err != nil {
		return 0, w.err
	}
	if a == b {
		return 1, nil
	}
	aw, bw := strings.Fields(a), strings.Fields(b)
	shared := 0
	for _, x := range aw {
		for _, y := range bw {
			if x == y {
				shared++
				break
			}
		}
	}
	return float64(shared) / float64(max(len(aw), len(bw))), nil
}

func mustPermutation(t *testing.T, pairs ...string) *domain.LabelPermutation {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	entries := make([]domain.PermutationEntry, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		entries = append(entries, domain.PermutationEntry{Presented: domain.Label(pairs[i]), True: domain.Label(pairs[i+1])})
	}
	p, err := domain.NewLabelPermutation(entries)
	require.NoError(t, err)
	return p
}

var testDefinitions = map[domain.Label]string{
	"A": "red round fruit",
	"B": "red square box",
	"C": "blue sky",
}

func TestDistanceScorer_Exact(t *testing.T) {
	s := NewDistanceScorer(nil)

	tests := []struct {
		name string
		p    *domain.LabelPermutation
		want float64
	}{
		{"identity", mustPermutation(t, "A", "A", "B", "B", "C", "C"), 0},
		{"derangement", mustPermutation(t, "B", "A", "C", "B", "A", "C"), 1},
		{"one fixed point", mustPermutation(t, "A", "A", "C", "B", "B", "C"), 2.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Distance(tt.p, testDefinitions, domain.MetricExact)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, d, 1e-9)
		})
	}
}

func TestDistanceScorer_DelegatesText(t *testing.T) {
	sim := &wordOverlap{}
	s := NewDistanceScorer(sim)

	p := mustPermutation(t, "B", "A", "A", "B", "C", "C")
	got, err := s.Similarity(p, testDefinitions, domain.MetricRouge1)
	require.NoError(t, err)
	// A<->B share one of three words twice, C matches itself.
	assert.InDelta(t, (1.0/3+1.0/3+1)/3, got, 1e-9)
	assert.Equal(t, 3, sim.calls)

	d, err := s.Distance(p, testDefinitions, domain.MetricRouge1)
	require.NoError(t, err)
	assert.InDelta(t, 1-got, d, 1e-9)
}

func TestDistanceScorer_Distances(t *testing.T) {
	s := NewDistanceScorer(&wordOverlap{})
	p := mustPermutation(t, "A", "A", "B", "B")

	ds, err := s.Distances(p, testDefinitions, []domain.DistanceMetric{domain.MetricExact, domain.MetricEdit})
	require.NoError(t, err)
	assert.Equal(t, map[domain.DistanceMetric]float64{domain.MetricExact: 0, domain.MetricEdit: 0}, ds)
}

func TestDistanceScorer_Errors(t *testing.T) {
	t.Run("missing definition", func(t *testing.T) {
		s := NewDistanceScorer(&wordOverlap{})
		p := mustPermutation(t, "A", "D", "D", "A")
		_, err := s.Distance(p, testDefinitions, domain.MetricEdit)
		assert.ErrorIs(t, err, domain.ErrMissingDefinition)

		var cerr *domain.ConfigurationError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, "D", cerr.Field)
	})

	t.Run("empty permutation", func(t *testing.T) {
		_, err := NewDistanceScorer(nil).Distance(&domain.LabelPermutation{}, testDefinitions, domain.MetricExact)
		assert.ErrorIs(t, err, domain.ErrInvalidPermutation)
	})

	t.Run("no scorer for text metric", func(t *testing.T) {
		_, err := NewDistanceScorer(nil).Distance(mustPermutation(t, "A", "A"), testDefinitions, domain.MetricEdit)
		assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
	})

	t.Run("scorer failure propagates", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := NewDistanceScorer(&wordOverlap{err: boom}).Distance(mustPermutation(t, "A", "B", "B", "A"), testDefinitions, domain.MetricRougeL)
		assert.ErrorIs(t, err, boom)
	})
}

func TestBucket(t *testing.T) {
	tests := []struct {
		distance, width float64
		want            int
	}{
		{0, 0.01, 0},
		{0.333333, 0.01, 33},
		{0.336, 0.01, 34},
		{1, 0.01, 100},
		{0.5, 0.25, 2},
		{0.62, 0.25, 2},
		{0.42, 0, 42},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(tt.distance, tt.width), "Bucket(%v, %v)", tt.distance, tt.width)
	}
}
