package domain

import (
	"time"
)

// PermutationMetricRecord is one row of the permutation table: the outcome
// of a single accepted run.
type PermutationMetricRecord struct {
	// Run is the 1-based position of the run among accepted runs.
	Run int `json:"run"`

	// RunID identifies the classifier output directory of the run.
	RunID string `json:"run_id"`

	// Permutation is the mapping the run was evaluated under.
	Permutation []PermutationEntry `json:"permutation"`

	// Distances holds the definition dissimilarity per tracked metric. It is
	// empty for policies that do not relabel onto real labels.
	Distances map[DistanceMetric]float64 `json:"distances,omitempty"`

	// Effects totals the guideline-effect outcomes of the run. It is zero
	// when no factual baseline was available.
	Effects EffectCounts `json:"effects"`

	// Breakdown splits Effects by (factual prediction, expected label).
	Breakdown []EffectCell `json:"breakdown,omitempty"`

	// Accuracy is the classifier's exact-match mean for the run.
	Accuracy float64 `json:"accuracy"`

	// OutputPath is the classifier artifact written for the run.
	OutputPath string `json:"output_path"`
}

// MetricTable is the ordered collection of accepted runs together with the
// distance metrics tracked for every row.
type MetricTable struct {
	// Metrics lists the distance columns, in column order.
	Metrics []DistanceMetric `json:"metrics"`

	// Records holds one row per accepted run, in acceptance order.
	Records []PermutationMetricRecord `json:"records"`

	// TrackEffects adds the guideline-effect columns to the table.
	TrackEffects bool `json:"track_effects"`
}

// Column names used in the persisted table.
const (
	ColumnRun               = "run"
	ColumnGuidelinePositive = "guideline_positive"
	ColumnGuidelineNeutral  = "guideline_neutral"
	ColumnGuidelineNegative = "guideline_negative"
	ColumnAccuracy          = "accuracy"
)

// Header returns the column names in persisted order. Accuracy is always the
// last column.
func (t *MetricTable) Header() []string {
	header := []string{ColumnRun}
	for _, m := range t.Metrics {
		header = append(header, m.ColumnName())
	}
	if t.TrackEffects {
		header = append(header, ColumnGuidelinePositive, ColumnGuidelineNeutral, ColumnGuidelineNegative)
	}
	return append(header, ColumnAccuracy)
}

// NumericColumns returns the columns that take part in correlation
// analysis: every distance column followed by accuracy.
func (t *MetricTable) NumericColumns() []string {
	cols := make([]string, 0, len(t.Metrics)+1)
	for _, m := range t.Metrics {
		cols = append(cols, m.ColumnName())
	}
	return append(cols, ColumnAccuracy)
}

// Column extracts the values of a numeric column across all records. Unknown
// columns yield nil.
func (t *MetricTable) Column(name string) []float64 {
	if name == ColumnAccuracy {
		out := make([]float64, len(t.Records))
		for i, r := range t.Records {
			out[i] = r.Accuracy
		}
		return out
	}
	for _, m := range t.Metrics {
		if m.ColumnName() != name {
			continue
		}
		out := make([]float64, len(t.Records))
		for i, r := range t.Records {
			out[i] = r.Distances[m]
		}
		return out
	}
	return nil
}

// EvaluationReport summarizes a completed driver run.
type EvaluationReport struct {
	// ID uniquely identifies this evaluation (a UUID).
	ID string `json:"id"`

	// Domain and Concept identify the taxonomy that was evaluated.
	Domain  string `json:"domain"`
	Concept string `json:"concept"`

	// Policy is the noise policy of the sampled runs.
	Policy NoisePolicy `json:"policy"`

	// Table holds the accepted runs.
	Table MetricTable `json:"table"`

	// BaselineRunID identifies the factual baseline run, if one was made.
	BaselineRunID string `json:"baseline_run_id,omitempty"`

	// Breakdown pools the guideline-effect cells of every accepted run.
	Breakdown []EffectCell `json:"breakdown,omitempty"`

	// BucketCounts maps a distance bucket index to the number of accepted
	// runs that fell into it.
	BucketCounts map[int]int `json:"bucket_counts,omitempty"`

	// Discarded counts candidates rejected by the per-bucket cap.
	Discarded int `json:"discarded"`

	// Exhausted is true when sampling stopped because no candidates remained.
	Exhausted bool `json:"exhausted"`

	// Correlations holds pairwise Pearson coefficients between numeric
	// table columns. It is omitted when fewer than two runs were accepted.
	Correlations map[string]map[string]float64 `json:"correlations,omitempty"`

	// TablePath is where the permutation table was persisted.
	TablePath string `json:"table_path,omitempty"`

	// Timestamp records when the report was created.
	Timestamp time.Time `json:"timestamp"`
}
