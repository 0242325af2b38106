package similarity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

func TestScorer_Similarity(t *testing.T) {
	s := NewScorer()
	tests := []struct {
		name   string
		a, b   string
		metric domain.DistanceMetric
		want   float64
	}{
		{"exact same", "Human", "human", domain.MetricExact, 1},
		{"exact different", "Human", "Social", domain.MetricExact, 0},
		{"edit identical ignoring case", "Skills", "SKILLS", domain.MetricEdit, 1},
		{"edit one substitution", "kitten", "sitten", domain.MetricEdit, 1 - 1.0/6},
		{"edit unicode counts runes", "café", "cafe", domain.MetricEdit, 0.75},
		{"edit both empty", "", "", domain.MetricEdit, 1},
		{"rouge1 disjoint", "natural resources", "human skills", domain.MetricRouge1, 0},
		{"rouge1 half", "the cat sat", "the dog sat down", domain.MetricRouge1, 2 * (2.0 / 4) * (2.0 / 3) / (2.0/4 + 2.0/3)},
		{"rouge1 punctuation and case", "Skills, knowledge.", "skills knowledge", domain.MetricRouge1, 1},
		{"rouge2 one shared bigram", "the cat sat", "the cat ran", domain.MetricRouge2, 0.5},
		{"rouge2 too short", "cat", "cat", domain.MetricRouge2, 0},
		{"rougeL subsequence", "a b c d", "a c d e", domain.MetricRougeL, 0.75},
		{"rouge empty", "", "words", domain.MetricRougeL, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Similarity(tt.a, tt.b, tt.metric)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestScorer_UnknownMetric(t *testing.T) {
	_, err := NewScorer().Similarity("a", "b", domain.DistanceMetric("bleu"))
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestRougeN_ClipsRepeatedTokens(t *testing.T) {
	// "the" appears twice in the candidate but once in the reference.
	assert.InDelta(t, 2*(1.0/3)*1/(1.0/3+1), RougeN("the", "the the cat", 1), 1e-9)
}

func TestRouge_Symmetric(t *testing.T) {
	a := "Employee skills, knowledge and productivity"
	b := "Skills of employees and their social relationships"
	assert.InDelta(t, RougeN(a, b, 1), RougeN(b, a, 1), 1e-12)
	assert.InDelta(t, RougeL(a, b), RougeL(b, a), 1e-12)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"r", "d", "spending", "2024"}, Tokenize("R&D spending (2024)"))
	assert.Empty(t, Tokenize(" ,. "))
}

func TestScorer_Concurrent(t *testing.T) {
	s := NewScorer()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				got, err := s.Similarity("Straße", "STRASSE", domain.MetricEdit)
				assert.NoError(t, err)
				assert.Equal(t, 1.0, got)
			}
		}()
	}
	wg.Wait()
}
