package testutils

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

type lengthMetric struct{}

func (lengthMetric) Columns() []string { return []string{"len"} }

func (lengthMetric) Measure(index int, prediction, reference string) map[string]float64 {
	return map[string]float64{"len": float64(len(prediction))}
}

func TestMockClassifier_Classify(t *testing.T) {
	c := &MockClassifier{
		Samples: []ports.Sample{
			{Source: "a", Target: "Human"},
			{Source: "b", Target: "Natural"},
			{Source: "c", Target: "Human"},
			{Source: "d", Target: "Social"},
		},
		Predict: func(_ ports.ClassificationRequest, s ports.Sample) string {
			return "Human"
		},
		OutputDir: "/tmp/out",
	}

	result, err := c.Classify(context.Background(), ports.ClassificationRequest{
		RunID:   "run-1",
		Metrics: []ports.PredictionMetric{lengthMetric{}},
		Preprocess: func(in []ports.Sample) []ports.Sample {
			return in[:3]
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/out/run-1/predictions.csv", result.OutputPath)
	assert.Len(t, result.Predictions, 3)
	assert.InDelta(t, 2.0/3.0, result.Scores.ExactMatch, 1e-9)
	assert.InDelta(t, 5, result.Scores.Metrics["len"], 1e-9)
	assert.Len(t, c.Requests(), 1)
}

func TestMockClassifier_Failure(t *testing.T) {
	boom := errors.New("boom")
	c := &MockClassifier{Err: boom, FailOn: 2}

	_, err := c.Classify(context.Background(), ports.ClassificationRequest{RunID: "first"})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), ports.ClassificationRequest{RunID: "second"})
	require.ErrorIs(t, err, boom)
	var cerr *ports.ClassifierError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "second", cerr.RunID)
}
