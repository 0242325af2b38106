package main

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/thefonseca/concept-guidelines/infrastructure/cache"
	"github.com/thefonseca/concept-guidelines/infrastructure/classifier"
	"github.com/thefonseca/concept-guidelines/infrastructure/dataset"
	"github.com/thefonseca/concept-guidelines/infrastructure/llm"
	"github.com/thefonseca/concept-guidelines/infrastructure/report"
	"github.com/thefonseca/concept-guidelines/infrastructure/similarity"
	"github.com/thefonseca/concept-guidelines/internal/application"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

const (
	breakerFailures = 5
	breakerCooldown = 30 * time.Second
	retryBaseDelay  = time.Second
	retryMaxDelay   = 30 * time.Second
)

// evalRuntime holds the collaborators built for one evaluation config.
type evalRuntime struct {
	driver *application.Driver
	cache  *cache.SQLiteStore
}

func (r *evalRuntime) Close() {
	if r.cache != nil {
		_ = r.cache.Close()
	}
}

// newLLMClient builds the provider client with the middleware chain, from
// outermost to innermost: tracing, metrics, circuit breaker, retry, rate
// limit, timeout.
func newLLMClient(cfg *application.EvaluationConfig, collector ports.MetricsCollector) (*llm.Client, error) {
	provider, model, err := llm.ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	mws := []llm.Middleware{
		llm.TracingMiddleware("guideval", provider),
		llm.MetricsMiddleware(collector, provider),
		llm.CircuitBreakerMiddlewareWithMetrics(breakerFailures, breakerCooldown, breakerMetrics{collector: collector, provider: provider}),
		llm.RetryMiddleware(cfg.Classifier.MaxRetries, retryBaseDelay, retryMaxDelay),
	}
	if rps := cfg.Classifier.RequestsPerSecond; rps > 0 {
		mws = append(mws, llm.RateLimitMiddleware(rate.Limit(rps), max(1, int(rps))))
	}
	timeout := time.Duration(cfg.Classifier.TimeoutSeconds) * time.Second
	mws = append(mws, llm.TimeoutMiddleware(timeout))

	return llm.NewClient(provider, llm.ClientConfig{
		APIKey:     os.Getenv(llm.APIKeyEnv[provider]),
		Model:      model,
		Timeout:    timeout,
		Middleware: mws,
	})
}

func newRuntime(cfg *application.EvaluationConfig, store ports.GuidelineStore) (*evalRuntime, error) {
	client, err := newLLMClient(cfg, metrics)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	rt := &evalRuntime{}
	opts := []classifier.Option{classifier.WithLogger(logger), classifier.WithMetrics(metrics)}
	if cfg.Classifier.CachePath != "" {
		rt.cache, err = cache.OpenSQLite(cfg.Classifier.CachePath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, classifier.WithCache(rt.cache))
	}

	clf, err := classifier.New(client, classifier.Config{
		DatasetPath: cfg.Dataset.Path,
		OutputDir:   cfg.OutputDir,
		Concurrency: cfg.Classifier.Concurrency,
		Temperature: cfg.Classifier.Temperature,
		MaxTokens:   cfg.Classifier.MaxTokens,
	}, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	driverOpts := []application.DriverOption{
		application.WithLogger(logger),
		application.WithMetrics(metrics),
		application.WithTableWriter(report.CSVTableWriter{}),
	}
	if cfg.Dataset.Balanced {
		driverOpts = append(driverOpts, application.WithPreprocess(
			dataset.BalancedPreprocess(cfg.Dataset.MaxSamples, cfg.Seed, logger)))
	}
	rt.driver = application.NewDriver(store, clf, similarity.NewScorer(), driverOpts...)
	return rt, nil
}

// breakerMetrics reports circuit breaker transitions as metrics.
type breakerMetrics struct {
	collector ports.MetricsCollector
	provider  string
}

func (b breakerMetrics) RecordState(state llm.CircuitBreakerState) {
	b.collector.RecordGauge("llm_circuit_breaker_state", float64(state), map[string]string{"provider": b.provider})
}

func (b breakerMetrics) RecordTrip() {
	b.collector.RecordCounter("llm_circuit_breaker_trips_total", 1, map[string]string{"provider": b.provider})
}

func (b breakerMetrics) RecordSuccess() {}

func (b breakerMetrics) RecordFailure() {
	b.collector.RecordCounter("llm_circuit_breaker_failures_total", 1, map[string]string{"provider": b.provider})
}
