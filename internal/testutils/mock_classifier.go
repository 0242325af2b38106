package testutils

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// PredictFunc decides the target name predicted for one sample.
type PredictFunc func(req ports.ClassificationRequest, sample ports.Sample) string

// MockClassifier implements ports.Classifier over an in-memory sample set.
// It applies the request's preprocess function, predicts with Predict,
// scores exact match against the sample target and evaluates the request's
// prediction metrics, without calling any model or writing files.
type MockClassifier struct {
	// Samples is the dataset every run classifies.
	Samples []ports.Sample
	// Predict chooses the prediction. Nil predicts the sample target.
	Predict PredictFunc
	// OutputDir prefixes the reported output paths.
	OutputDir string
	// Err, when set, is returned from the call numbered FailOn (1-based).
	// FailOn zero fails every call.
	Err    error
	FailOn int

	mu       sync.Mutex
	requests []ports.ClassificationRequest
}

// Classify implements ports.Classifier.
func (m *MockClassifier) Classify(ctx context.Context, req ports.ClassificationRequest) (*ports.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	call := len(m.requests)
	m.mu.Unlock()

	if m.Err != nil && (m.FailOn == 0 || m.FailOn == call) {
		return nil, ports.NewClassifierError(req.RunID, "classify", m.Err)
	}

	samples := make([]ports.Sample, len(m.Samples))
	copy(samples, m.Samples)
	if req.Preprocess != nil {
		samples = req.Preprocess(samples)
	}

	result := &ports.ClassificationResult{
		OutputPath:  filepath.Join(m.OutputDir, req.RunID, "predictions.csv"),
		Predictions: make([]ports.Prediction, 0, len(samples)),
		Scores:      ports.AggregateScores{Metrics: make(map[string]float64)},
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	correct := 0
	for i, s := range samples {
		predicted := s.Target
		if m.Predict != nil {
			predicted = m.Predict(req, s)
		}
		p := ports.Prediction{
			Index:     i,
			Source:    s.Source,
			Reference: s.Target,
			Raw:       predicted,
			Predicted: predicted,
			Metrics:   make(map[string]float64),
		}
		if predicted == s.Target {
			correct++
		}
		for _, metric := range req.Metrics {
			for k, v := range metric.Measure(i, predicted, s.Target) {
				p.Metrics[k] = v
				sums[k] += v
				counts[k]++
			}
		}
		result.Predictions = append(result.Predictions, p)
	}

	if n := len(samples); n > 0 {
		result.Scores.ExactMatch = float64(correct) / float64(n)
		result.Scores.Count = n
	}
	for k, sum := range sums {
		result.Scores.Metrics[k] = sum / float64(counts[k])
	}
	return result, nil
}

// Requests returns a copy of every request received.
func (m *MockClassifier) Requests() []ports.ClassificationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.ClassificationRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

var _ ports.Classifier = (*MockClassifier)(nil)
