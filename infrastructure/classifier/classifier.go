// Package classifier implements the text classifier under evaluation on top
// of an LLM client: it renders one prompt per dataset sample, collects the
// completions concurrently, maps them onto the offered labels and writes the
// predictions of each run to disk.
package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thefonseca/concept-guidelines/infrastructure/dataset"
	"github.com/thefonseca/concept-guidelines/infrastructure/report"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// PredictionsFileName is the per-run artifact written under the output
// directory.
const PredictionsFileName = "predictions.csv"

// Metric names reported to the MetricsCollector.
const (
	MetricCacheHits   = "classifier_cache_hits_total"
	MetricCacheMisses = "classifier_cache_misses_total"
	MetricUnparsed    = "classifier_unparsed_total"
)

// Config holds the settings shared by every run of a classifier.
type Config struct {
	// DatasetPath is the CSV file classified by every run.
	DatasetPath string
	// OutputDir receives one directory per run.
	OutputDir string
	// Concurrency bounds in-flight completions. Values below 1 mean 1.
	Concurrency int
	// Temperature and MaxTokens are passed to the provider.
	Temperature float64
	MaxTokens   int
	// CacheTTL is the lifetime of cached completions. Zero never expires.
	CacheTTL time.Duration
}

// LLMClassifier implements ports.Classifier with an LLM.
type LLMClassifier struct {
	client  ports.LLMClient
	cfg     Config
	loader  *dataset.Loader
	cache   ports.CacheStore
	metrics ports.MetricsCollector
	logger  *zap.Logger
	tracer  trace.Tracer

	mu       sync.Mutex
	datasets map[dataset.Columns][]ports.Sample
}

var _ ports.Classifier = (*LLMClassifier)(nil)

// Option configures optional collaborators.
type Option func(*LLMClassifier)

// WithCache reuses completions across runs and invocations.
func WithCache(c ports.CacheStore) Option {
	return func(l *LLMClassifier) { l.cache = c }
}

// WithMetrics reports cache hits and unparsed responses.
func WithMetrics(m ports.MetricsCollector) Option {
	return func(l *LLMClassifier) { l.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *LLMClassifier) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an LLMClassifier.
func New(client ports.LLMClient, cfg Config, opts ...Option) (*LLMClassifier, error) {
	if client == nil {
		return nil, errors.New("classifier: LLM client is required")
	}
	if cfg.DatasetPath == "" {
		return nil, errors.New("classifier: dataset path is required")
	}
	cfg.Concurrency = max(cfg.Concurrency, 1)

	l := &LLMClassifier{
		client:   client,
		cfg:      cfg,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("llm-classifier"),
		datasets: make(map[dataset.Columns][]ports.Sample),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.loader = dataset.NewLoader(l.logger)
	return l, nil
}

// Classify implements ports.Classifier.
func (l *LLMClassifier) Classify(ctx context.Context, req ports.ClassificationRequest) (*ports.ClassificationResult, error) {
	ctx, span := l.tracer.Start(ctx, "classifier.Classify",
		trace.WithAttributes(
			attribute.String("run.id", req.RunID),
			attribute.String("llm.model", l.client.GetModel()),
			attribute.Bool("context", req.Context != nil),
		))
	defer span.End()

	result, err := l.classify(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("samples", result.Scores.Count),
		attribute.Float64("accuracy", result.Scores.ExactMatch))
	return result, nil
}

func (l *LLMClassifier) classify(ctx context.Context, req ports.ClassificationRequest) (*ports.ClassificationResult, error) {
	samples, err := l.samples(dataset.Columns{
		Source:       req.SourceKey,
		Target:       req.TargetKey,
		PreviousText: req.PreviousTextKey,
	})
	if err != nil {
		return nil, ports.NewClassifierError(req.RunID, "load", err)
	}
	if req.Preprocess != nil {
		samples = req.Preprocess(samples)
	}
	if len(samples) == 0 {
		return nil, ports.NewClassifierError(req.RunID, "load", ports.ErrEmptyDataset)
	}

	responses, err := l.completeAll(ctx, req, samples)
	if err != nil {
		return nil, ports.NewClassifierError(req.RunID, "complete", err)
	}

	result := l.score(req, samples, responses)
	path := filepath.Join(l.cfg.OutputDir, req.RunID, PredictionsFileName)
	if err := report.WritePredictions(path, result.Predictions, metricColumns(req.Metrics)); err != nil {
		return nil, ports.NewClassifierError(req.RunID, "write", err)
	}
	result.OutputPath = path

	l.logger.Info("Classification finished",
		zap.String("run_id", req.RunID),
		zap.Int("samples", result.Scores.Count),
		zap.Float64("accuracy", result.Scores.ExactMatch),
		zap.String("output", path))
	return result, nil
}

// samples loads the dataset once per column selection. Callers get a copy.
func (l *LLMClassifier) samples(cols dataset.Columns) ([]ports.Sample, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	loaded, ok := l.datasets[cols]
	if !ok {
		var err error
		loaded, err = l.loader.LoadFile(l.cfg.DatasetPath, cols)
		if err != nil {
			return nil, err
		}
		l.datasets[cols] = loaded
	}
	out := make([]ports.Sample, len(loaded))
	copy(out, loaded)
	return out, nil
}

func (l *LLMClassifier) completeAll(ctx context.Context, req ports.ClassificationRequest, samples []ports.Sample) ([]string, error) {
	opts := map[string]any{"temperature": l.cfg.Temperature}
	if l.cfg.MaxTokens > 0 {
		opts["max_tokens"] = l.cfg.MaxTokens
	}

	responses := make([]string, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.Concurrency)
	for i, s := range samples {
		prompt := BuildPrompt(req, s)
		if i == 0 {
			l.logger.Debug("First prompt", zap.String("run_id", req.RunID), zap.String("prompt", prompt))
		}
		g.Go(func() error {
			resp, err := l.complete(gctx, prompt, opts)
			if err != nil {
				return fmt.Errorf("sample %d: %w", s.Index, err)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

func (l *LLMClassifier) complete(ctx context.Context, prompt string, opts map[string]any) (string, error) {
	if l.cache == nil {
		return l.client.Complete(ctx, prompt, opts)
	}

	key := cacheKey(l.client.GetModel(), prompt, opts)
	if cached, ok, err := l.cache.Get(ctx, key); err != nil {
		l.logger.Warn("Cache read failed", zap.Error(err))
	} else if ok {
		l.count(MetricCacheHits)
		return cached, nil
	}
	l.count(MetricCacheMisses)

	resp, err := l.client.Complete(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if err := l.cache.Set(ctx, key, resp, l.cfg.CacheTTL); err != nil {
		l.logger.Warn("Cache write failed", zap.Error(err))
	}
	return resp, nil
}

func (l *LLMClassifier) count(metric string) {
	if l.metrics != nil {
		l.metrics.RecordCounter(metric, 1, map[string]string{"model": l.client.GetModel()})
	}
}

// score parses responses, maps them to target names and evaluates the
// request metrics in sample order.
func (l *LLMClassifier) score(req ports.ClassificationRequest, samples []ports.Sample, responses []string) *ports.ClassificationResult {
	result := &ports.ClassificationResult{
		Predictions: make([]ports.Prediction, len(samples)),
		Scores:      ports.AggregateScores{Metrics: make(map[string]float64), Count: len(samples)},
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	correct := 0
	for i, s := range samples {
		raw := responses[i]
		predicted := strings.TrimSpace(raw)
		if label, ok := ParseLabel(raw, req.LabelOrder); ok {
			predicted = string(label)
			if target, ok := req.Labels[label]; ok {
				predicted = target
			}
		} else {
			l.count(MetricUnparsed)
		}

		p := ports.Prediction{
			Index:     i,
			Source:    s.Source,
			Reference: s.Target,
			Raw:       raw,
			Predicted: predicted,
			Metrics:   make(map[string]float64),
		}
		if strings.EqualFold(strings.TrimSpace(predicted), strings.TrimSpace(s.Target)) {
			correct++
		}
		for _, m := range req.Metrics {
			for k, v := range m.Measure(i, predicted, s.Target) {
				p.Metrics[k] = v
				sums[k] += v
				counts[k]++
			}
		}
		result.Predictions[i] = p
	}

	result.Scores.ExactMatch = float64(correct) / float64(len(samples))
	for k, sum := range sums {
		result.Scores.Metrics[k] = sum / float64(counts[k])
	}
	return result
}

func metricColumns(metrics []ports.PredictionMetric) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, m := range metrics {
		for _, c := range m.Columns() {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func cacheKey(model, prompt string, opts map[string]any) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%v\x00%v\x00", model, opts["temperature"], opts["max_tokens"])
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
