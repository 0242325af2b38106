package ports

import (
	"context"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// Sample is one dataset row handed to the classifier.
type Sample struct {
	// Index is the position of the sample after preprocessing. Predictions
	// of two runs over the same data line up by Index.
	Index int

	// Source is the text to classify.
	Source string

	// Target is the reference label.
	Target string

	// PreviousText is the text preceding Source, when the dataset has one.
	PreviousText string
}

// PreprocessFunc transforms the loaded samples before classification, for
// example to balance classes. It must be deterministic for a given input.
type PreprocessFunc func(samples []Sample) []Sample

// PredictionMetric is evaluated once per prediction. Implementations return
// only the columns they could score; a missing column means undefined.
type PredictionMetric interface {
	// Columns lists every column the metric may emit.
	Columns() []string

	// Measure scores one prediction.
	Measure(index int, prediction, reference string) map[string]float64
}

// ClassificationRequest describes one classifier run.
type ClassificationRequest struct {
	// RunID names the run and its output directory.
	RunID string

	// Context is the guideline prompt. Nil means the classifier should use
	// its default zero-shot instruction.
	Context *string

	// Labels maps each presented label to the target name a prediction of
	// that label is recorded as.
	Labels map[domain.Label]string

	// LabelOrder lists the presented labels in the order they are offered.
	LabelOrder []domain.Label

	// LabelType is the display name of the label kind, e.g. "Concept".
	LabelType string

	// SourceKey, TargetKey and PreviousTextKey select dataset fields.
	SourceKey       string
	TargetKey       string
	PreviousTextKey string

	// Preprocess optionally transforms the loaded samples.
	Preprocess PreprocessFunc

	// Metrics are evaluated per prediction.
	Metrics []PredictionMetric
}

// Prediction is the classifier output for one sample.
type Prediction struct {
	Index     int
	Source    string
	Reference string
	// Raw is the unparsed model response.
	Raw string
	// Predicted is the target name the response was mapped to, or the raw
	// response when it matched no offered label.
	Predicted string
	// Metrics holds the per-prediction metric values.
	Metrics map[string]float64
}

// AggregateScores summarizes a run.
type AggregateScores struct {
	// ExactMatch is the fraction of predictions equal to the reference.
	ExactMatch float64
	// Metrics holds the mean of every per-prediction metric column over the
	// predictions where it was defined.
	Metrics map[string]float64
	// Count is the number of predictions.
	Count int
}

// ClassificationResult is the outcome of a classifier run.
type ClassificationResult struct {
	// OutputPath is the primary artifact written for the run.
	OutputPath string
	// Predictions is ordered by sample index.
	Predictions []Prediction
	Scores      AggregateScores
}

// PredictedAt returns the prediction for a sample index.
func (r *ClassificationResult) PredictedAt(index int) (string, bool) {
	if r == nil || index < 0 || index >= len(r.Predictions) {
		return "", false
	}
	return r.Predictions[index].Predicted, true
}

// Classifier is the text classifier whose robustness is evaluated.
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (*ClassificationResult, error)
}

// GuidelineStore resolves the guideline material for a concept.
type GuidelineStore interface {
	Lookup(domainName, concept string) (*domain.Taxonomy, error)
}

// SimilarityScorer measures how alike two texts are, in [0, 1].
type SimilarityScorer interface {
	Similarity(a, b string, metric domain.DistanceMetric) (float64, error)
}

// TableWriter persists the permutation metric table.
type TableWriter interface {
	WriteTable(ctx context.Context, path string, table *domain.MetricTable) error
}
