package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

const matchPrefix = "guideline_match_"

// EffectSummary aggregates one guideline_match_{factual}_{expected} column
// over every prediction file it appears in.
type EffectSummary struct {
	Column string
	Key    domain.EffectKey

	// Mean is the average outcome score over the defined cells.
	Mean float64

	Counts domain.EffectCounts
}

// Total is the number of scored cells.
func (s EffectSummary) Total() int {
	return s.Counts.Positive + s.Counts.Neutral + s.Counts.Negative
}

// Share returns the fraction of scored cells with the given outcome.
func (s EffectSummary) Share(o domain.Outcome) float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	var n int
	switch o {
	case domain.OutcomeFaithful:
		n = s.Counts.Positive
	case domain.OutcomeIgnored:
		n = s.Counts.Neutral
	case domain.OutcomeOther:
		n = s.Counts.Negative
	}
	return float64(n) / float64(total)
}

// AggregateEffects reads prediction files and summarizes every guideline
// match cell column, sorted by column name. Empty cells are skipped.
func AggregateEffects(paths []string) ([]EffectSummary, error) {
	type acc struct {
		sum    float64
		counts domain.EffectCounts
	}
	cols := make(map[string]*acc)

	for _, path := range paths {
		err := readColumns(path, func(name string, value float64) {
			a := cols[name]
			if a == nil {
				a = &acc{}
				cols[name] = a
			}
			a.sum += value
			switch value {
			case 1:
				a.counts.Positive++
			case 0:
				a.counts.Neutral++
			case -1:
				a.counts.Negative++
			}
		})
		if err != nil {
			return nil, err
		}
	}

	out := make([]EffectSummary, 0, len(cols))
	for name, a := range cols {
		s := EffectSummary{Column: name, Key: parseEffectKey(name), Counts: a.counts}
		if n := s.Total(); n > 0 {
			s.Mean = a.sum / float64(n)
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Column < out[j].Column })
	return out, nil
}

// readColumns calls fn for every non-empty guideline match cell of a file.
func readColumns(path string, fn func(column string, value float64)) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open predictions: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("%s: read header: %w", path, err)
	}
	var idx []int
	for i, h := range header {
		if strings.HasPrefix(h, matchPrefix) {
			idx = append(idx, i)
		}
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		for _, i := range idx {
			if i >= len(rec) || strings.TrimSpace(rec[i]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil || math.IsNaN(v) {
				continue
			}
			fn(header[i], v)
		}
	}
}

// parseEffectKey splits guideline_match_{factual}_{expected}. Labels may
// contain spaces but not underscores, so the last underscore separates them.
func parseEffectKey(column string) domain.EffectKey {
	rest := strings.TrimPrefix(column, matchPrefix)
	i := strings.LastIndex(rest, "_")
	if i < 0 {
		return domain.EffectKey{Factual: domain.Label(rest)}
	}
	return domain.EffectKey{Factual: domain.Label(rest[:i]), Expected: domain.Label(rest[i+1:])}
}
