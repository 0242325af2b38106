package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricTable_Header(t *testing.T) {
	tests := []struct {
		name  string
		table MetricTable
		want  []string
	}{
		{
			name:  "no metrics",
			table: MetricTable{},
			want:  []string{"run", "accuracy"},
		},
		{
			name:  "distances",
			table: MetricTable{Metrics: []DistanceMetric{MetricExact, MetricRouge1}},
			want:  []string{"run", "permutation_exact_distance", "permutation_rouge1_distance", "accuracy"},
		},
		{
			name:  "distances and effects",
			table: MetricTable{Metrics: []DistanceMetric{MetricEdit}, TrackEffects: true},
			want: []string{
				"run", "permutation_edit_distance",
				"guideline_positive", "guideline_neutral", "guideline_negative",
				"accuracy",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.table.Header())
			header := tt.table.Header()
			assert.Equal(t, ColumnAccuracy, header[len(header)-1], "accuracy must be the last column")
		})
	}
}

func TestMetricTable_Column(t *testing.T) {
	table := MetricTable{
		Metrics: []DistanceMetric{MetricExact},
		Records: []PermutationMetricRecord{
			{Run: 1, Distances: map[DistanceMetric]float64{MetricExact: 0.5}, Accuracy: 0.9},
			{Run: 2, Distances: map[DistanceMetric]float64{MetricExact: 1}, Accuracy: 0.4},
		},
	}

	assert.Equal(t, []float64{0.5, 1}, table.Column("permutation_exact_distance"))
	assert.Equal(t, []float64{0.9, 0.4}, table.Column(ColumnAccuracy))
	assert.Nil(t, table.Column("permutation_rouge2_distance"))
	assert.Equal(t, []string{"permutation_exact_distance", "accuracy"}, table.NumericColumns())
}

func TestEvaluationReport_JSON(t *testing.T) {
	report := EvaluationReport{
		ID:      "eval-1",
		Domain:  "financial",
		Concept: "capital",
		Policy:  NoiseRandom,
		Table: MetricTable{
			Metrics: []DistanceMetric{MetricExact},
			Records: []PermutationMetricRecord{{Run: 1, Accuracy: 0.75}},
		},
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var jsonMap map[string]any
	require.NoError(t, json.Unmarshal(data, &jsonMap))

	assert.Equal(t, "random", jsonMap["policy"])
	_, exists := jsonMap["correlations"]
	assert.False(t, exists, "correlations should be omitted when empty")
}
