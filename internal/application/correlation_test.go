package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		xs, ys []float64
		want   float64
		ok     bool
	}{
		{"perfect positive", []float64{1, 2, 3}, []float64{2, 4, 6}, 1, true},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1, true},
		{"uncorrelated", []float64{1, 2, 3, 4}, []float64{1, -1, -1, 1}, 0, true},
		{"constant series", []float64{1, 1, 1}, []float64{1, 2, 3}, 0, false},
		{"single point", []float64{1}, []float64{1}, 0, false},
		{"length mismatch", []float64{1, 2}, []float64{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Pearson(tt.xs, tt.ys)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCorrelations(t *testing.T) {
	table := &domain.MetricTable{
		Metrics: []domain.DistanceMetric{domain.MetricExact, domain.MetricEdit},
		Records: []domain.PermutationMetricRecord{
			{Run: 1, Distances: map[domain.DistanceMetric]float64{domain.MetricExact: 0, domain.MetricEdit: 0.1}, Accuracy: 0.9},
			{Run: 2, Distances: map[domain.DistanceMetric]float64{domain.MetricExact: 0.5, domain.MetricEdit: 0.1}, Accuracy: 0.6},
			{Run: 3, Distances: map[domain.DistanceMetric]float64{domain.MetricExact: 1, domain.MetricEdit: 0.1}, Accuracy: 0.3},
		},
	}

	corr := Correlations(table)
	require.Contains(t, corr, "accuracy")
	assert.InDelta(t, -1, corr["permutation_exact_distance"]["accuracy"], 1e-9)
	assert.InDelta(t, 1, corr["accuracy"]["accuracy"], 1e-9)
	// The edit column is constant and has no defined correlation.
	assert.NotContains(t, corr, "permutation_edit_distance")
	assert.NotContains(t, corr["accuracy"], "permutation_edit_distance")
}
