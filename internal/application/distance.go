package application

import (
	"fmt"
	"math"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// DefaultBucketWidth is the granularity distances are rounded to when
// stratifying runs.
const DefaultBucketWidth = 0.01

// DistanceScorer measures how far a permutation moves the guideline text
// away from the truth. Text similarity is delegated to a
// ports.SimilarityScorer; the exact metric is computed on labels directly.
type DistanceScorer struct {
	similarity ports.SimilarityScorer
}

// NewDistanceScorer creates a DistanceScorer. similarity may be nil when only
// the exact metric is used.
func NewDistanceScorer(similarity ports.SimilarityScorer) *DistanceScorer {
	return &DistanceScorer{similarity: similarity}
}

// Similarity returns the mean per-entry similarity between the definition
// of each presented label and the definition of its true label.
func (s *DistanceScorer) Similarity(
	p *domain.LabelPermutation,
	definitions map[domain.Label]string,
	metric domain.DistanceMetric,
) (float64, error) {
	if p.Empty() {
		return 0, fmt.Errorf("%w: cannot score an empty permutation", domain.ErrInvalidPermutation)
	}

	var total float64
	for _, e := range p.Entries() {
		if metric == domain.MetricExact {
			if e.Presented == e.True {
				total++
			}
			continue
		}

		if s.similarity == nil {
			return 0, domain.NewConfigurationError(string(metric),
				fmt.Errorf("%w: no similarity scorer for metric", domain.ErrInvalidConfiguration))
		}
		a, ok := definitions[e.Presented]
		if !ok {
			return 0, domain.NewConfigurationError(string(e.Presented), domain.ErrMissingDefinition)
		}
		b, ok := definitions[e.True]
		if !ok {
			return 0, domain.NewConfigurationError(string(e.True), domain.ErrMissingDefinition)
		}
		score, err := s.similarity.Similarity(a, b, metric)
		if err != nil {
			return 0, fmt.Errorf("similarity %s for %s->%s: %w", metric, e.Presented, e.True, err)
		}
		total += score
	}
	return total / float64(p.Len()), nil
}

// Distance is one minus Similarity.
func (s *DistanceScorer) Distance(
	p *domain.LabelPermutation,
	definitions map[domain.Label]string,
	metric domain.DistanceMetric,
) (float64, error) {
	sim, err := s.Similarity(p, definitions, metric)
	if err != nil {
		return 0, err
	}
	return 1 - sim, nil
}

// Distances computes every requested metric for p.
func (s *DistanceScorer) Distances(
	p *domain.LabelPermutation,
	definitions map[domain.Label]string,
	metrics []domain.DistanceMetric,
) (map[domain.DistanceMetric]float64, error) {
	out := make(map[domain.DistanceMetric]float64, len(metrics))
	for _, m := range metrics {
		d, err := s.Distance(p, definitions, m)
		if err != nil {
			return nil, err
		}
		out[m] = d
	}
	return out, nil
}

// Bucket rounds a distance to the nearest multiple of width and returns the
// multiple's index. Non-positive widths use DefaultBucketWidth.
func Bucket(distance, width float64) int {
	if width <= 0 {
		width = DefaultBucketWidth
	}
	return int(math.Round(distance / width))
}
