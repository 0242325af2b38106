// Package dataset reads evaluation samples from CSV files and prepares them
// for classification.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// ErrMissingColumn indicates that the header lacks a requested column.
var ErrMissingColumn = errors.New("dataset column not found")

// Columns names the CSV fields read into a ports.Sample.
type Columns struct {
	Source       string
	Target       string
	PreviousText string
}

// Loader reads CSV datasets with a header row.
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a Loader. A nil logger disables logging.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadFile reads the samples of a CSV file.
func (l *Loader) LoadFile(path string, cols Columns) ([]ports.Sample, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	samples, err := l.Load(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	l.logger.Info("Loaded dataset", zap.String("path", path), zap.Int("samples", len(samples)))
	return samples, nil
}

// Load reads samples from r. Sample indexes follow row order.
func (l *Loader) Load(r io.Reader, cols Columns) ([]ports.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	column := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		i, ok := index[name]
		if !ok {
			return -1, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		return i, nil
	}
	src, err := column(cols.Source, true)
	if err != nil {
		return nil, err
	}
	tgt, err := column(cols.Target, true)
	if err != nil {
		return nil, err
	}
	prev, err := column(cols.PreviousText, false)
	if err != nil {
		return nil, err
	}

	var samples []ports.Sample
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(samples)+2, err)
		}
		s := ports.Sample{
			Index:  len(samples),
			Source: field(rec, src),
			Target: field(rec, tgt),
		}
		if prev >= 0 {
			s.PreviousText = field(rec, prev)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}

// IsEmptyTarget reports whether a reference label is missing. Exported
// spreadsheets write missing values as "nan".
func IsEmptyTarget(target string) bool {
	t := strings.TrimSpace(target)
	return t == "" || strings.EqualFold(t, "nan")
}

// SampleBalanced drops samples without a target and draws the same number
// of samples from every class. Classes are visited in sorted order. With
// maxSamples > 0 each class contributes at most maxSamples/classes samples;
// otherwise the minority class size. The result is re-indexed.
func SampleBalanced(samples []ports.Sample, maxSamples int, rng *rand.Rand, logger *zap.Logger) []ports.Sample {
	if logger == nil {
		logger = zap.NewNop()
	}

	byClass := make(map[string][]ports.Sample)
	for _, s := range samples {
		if IsEmptyTarget(s.Target) {
			continue
		}
		byClass[s.Target] = append(byClass[s.Target], s)
	}
	if len(byClass) == 0 {
		return nil
	}

	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	perClass := maxSamples / len(classes)
	if maxSamples <= 0 {
		perClass = len(byClass[classes[0]])
		for _, c := range classes[1:] {
			perClass = min(perClass, len(byClass[c]))
		}
	}
	logger.Info("Sampling balanced data",
		zap.Int("classes", len(classes)),
		zap.Int("max_per_class", perClass))

	var out []ports.Sample
	for _, c := range classes {
		pool := slices.Clone(byClass[c])
		if rng != nil {
			rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		}
		n := min(len(pool), perClass)
		out = append(out, pool[:n]...)
		logger.Debug("Added class samples", zap.String("class", c), zap.Int("samples", n))
	}

	for i := range out {
		out[i].Index = i
	}
	return out
}

// BalancedPreprocess returns a ports.PreprocessFunc that applies
// SampleBalanced with a fresh generator per call, so every run of an
// evaluation sees the same sample.
func BalancedPreprocess(maxSamples int, seed uint64, logger *zap.Logger) ports.PreprocessFunc {
	return func(samples []ports.Sample) []ports.Sample {
		return SampleBalanced(samples, maxSamples, rand.New(rand.NewPCG(seed, 0)), logger)
	}
}
