// Package similarity scores how alike two guideline definitions are. The
// evaluator turns these scores into permutation distances.
package similarity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// Scorer implements ports.SimilarityScorer for every domain.DistanceMetric.
// Comparisons are case-insensitive. It is safe for concurrent use.
type Scorer struct{}

var _ ports.SimilarityScorer = (*Scorer)(nil)

// NewScorer creates a Scorer.
func NewScorer() *Scorer { return &Scorer{} }

// Similarity returns a score in [0, 1], 1 meaning identical.
func (s *Scorer) Similarity(a, b string, metric domain.DistanceMetric) (float64, error) {
	switch metric {
	case domain.MetricExact:
		if fold(a) == fold(b) {
			return 1, nil
		}
		return 0, nil
	case domain.MetricEdit:
		return Edit(a, b), nil
	case domain.MetricRouge1:
		return RougeN(a, b, 1), nil
	case domain.MetricRouge2:
		return RougeN(a, b, 2), nil
	case domain.MetricRougeL:
		return RougeL(a, b), nil
	default:
		return 0, fmt.Errorf("%w: unsupported similarity metric %q", domain.ErrInvalidConfiguration, metric)
	}
}

// Edit is 1 - levenshtein(a, b) / max rune length, on case-folded text.
func Edit(a, b string) float64 {
	a, b = fold(a), fold(b)
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	// levenshtein works on runes, so the rune count is the right bound.
	return max(0, 1-float64(levenshtein.ComputeDistance(a, b))/float64(maxLen))
}

// RougeN is the F-measure of clipped n-gram overlap between the token
// sequences of a and b.
func RougeN(a, b string, n int) float64 {
	ref, cand := ngrams(Tokenize(a), n), ngrams(Tokenize(b), n)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ref))
	for _, g := range ref {
		counts[g]++
	}
	overlap := 0
	for _, g := range cand {
		if counts[g] > 0 {
			counts[g]--
			overlap++
		}
	}
	return fmeasure(overlap, len(cand), len(ref))
}

// RougeL is the F-measure of the longest common token subsequence.
func RougeL(a, b string) float64 {
	ref, cand := Tokenize(a), Tokenize(b)
	if len(ref) == 0 || len(cand) == 0 {
		return 0
	}
	return fmeasure(lcs(ref, cand), len(cand), len(ref))
}

// Tokenize case-folds s and splits it on anything that is not a letter or
// digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func fold(s string) string {
	// A Caser keeps state between calls and cannot be shared across
	// goroutines.
	return cases.Fold().String(s)
}

func ngrams(tokens []string, n int) []string {
	if n <= 0 || len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], "\x00"))
	}
	return out
}

func lcs(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else {
				curr[j] = max(prev[j], curr[j-1])
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func fmeasure(overlap, candLen, refLen int) float64 {
	if overlap == 0 {
		return 0
	}
	precision := float64(overlap) / float64(candLen)
	recall := float64(overlap) / float64(refLen)
	return 2 * precision * recall / (precision + recall)
}
