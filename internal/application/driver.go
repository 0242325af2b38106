// Package application holds the evaluation core: permutation generation,
// distance scoring, context assembly, guideline-effect scoring and the
// driver that ties them to a classifier.
package application

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// TableFileName is the permutation table written next to the first run's
// output.
const TableFileName = "permutation_metrics.csv"

// Metric names reported to the MetricsCollector.
const (
	MetricPermutationsAccepted  = "permutations_accepted_total"
	MetricPermutationsDiscarded = "permutations_discarded_total"
	MetricRunAccuracy           = "run_accuracy"
	MetricPermutationDistance   = "permutation_distance"
	MetricClassifyLatency       = "classify"
)

// Driver runs the sampling loop of an evaluation: it draws permutations,
// stratifies them by distance, renders the perturbed guidelines, calls the
// classifier and collects one record per accepted run.
// A Driver is stateless between calls to Evaluate and may be reused.
type Driver struct {
	store      ports.GuidelineStore
	classifier ports.Classifier
	distances  *DistanceScorer
	assembler  *ContextAssembler

	tables     ports.TableWriter
	metrics    ports.MetricsCollector
	preprocess ports.PreprocessFunc
	logger     *zap.Logger
	tracer     trace.Tracer
}

// DriverOption configures optional Driver collaborators.
type DriverOption func(*Driver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics reports accepted and discarded candidates, accuracies,
// distances and classifier latency.
func WithMetrics(m ports.MetricsCollector) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// WithTableWriter persists the permutation table when the evaluation ends.
func WithTableWriter(w ports.TableWriter) DriverOption {
	return func(d *Driver) { d.tables = w }
}

// WithPreprocess passes a sample transformation to every classifier run.
func WithPreprocess(fn ports.PreprocessFunc) DriverOption {
	return func(d *Driver) { d.preprocess = fn }
}

// WithAssembler replaces the default context assembler.
func WithAssembler(a *ContextAssembler) DriverOption {
	return func(d *Driver) {
		if a != nil {
			d.assembler = a
		}
	}
}

// NewDriver creates a Driver. similarity may be nil when only the exact
// distance metric is configured.
func NewDriver(
	store ports.GuidelineStore,
	classifier ports.Classifier,
	similarity ports.SimilarityScorer,
	opts ...DriverOption,
) *Driver {
	d := &Driver{
		store:      store,
		classifier: classifier,
		distances:  NewDistanceScorer(similarity),
		assembler:  NewContextAssembler(),
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("evaluation-driver"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Evaluate runs one evaluation to completion. Exhausting the permutation
// space or the candidate limit ends the loop early without error. Classifier
// failures abort the evaluation.
func (d *Driver) Evaluate(ctx context.Context, cfg *EvaluationConfig) (*domain.EvaluationReport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil evaluation config", domain.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy := cfg.Policy()
	ctx, span := d.tracer.Start(ctx, "Driver.Evaluate",
		trace.WithAttributes(
			attribute.String("domain", cfg.Domain),
			attribute.String("concept", cfg.Concept),
			attribute.String("policy", string(policy)),
			attribute.Int("n_permutations", cfg.NPermutations),
		))
	defer span.End()

	report, err := d.evaluate(ctx, cfg, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("accepted", len(report.Table.Records)),
		attribute.Int("discarded", report.Discarded),
		attribute.Bool("exhausted", report.Exhausted),
	)
	return report, nil
}

func (d *Driver) evaluate(ctx context.Context, cfg *EvaluationConfig, policy domain.NoisePolicy) (*domain.EvaluationReport, error) {
	tax, err := d.store.Lookup(cfg.Domain, cfg.Concept)
	if err != nil {
		return nil, fmt.Errorf("lookup guidelines %s/%s: %w", cfg.Domain, cfg.Concept, err)
	}
	if err := tax.Validate(); err != nil {
		return nil, domain.NewConfigurationError("taxonomy", err)
	}

	sections := cfg.SectionKinds()
	relabels := policy.Relabels()
	var metrics []domain.DistanceMetric
	if relabels {
		metrics = cfg.Metrics()
	}
	needBaseline := relabels && cfg.MeasureGuidelineEffect
	metricLabels := map[string]string{"domain": cfg.Domain, "concept": cfg.Concept, "policy": string(policy)}

	report := &domain.EvaluationReport{
		ID:           uuid.NewString(),
		Domain:       cfg.Domain,
		Concept:      cfg.Concept,
		Policy:       policy,
		Table:        domain.MetricTable{Metrics: metrics, TrackEffects: needBaseline},
		BucketCounts: make(map[int]int),
		Timestamp:    time.Now(),
	}

	logger := d.logger.With(zap.String("evaluation_id", report.ID))
	logger.Info("starting evaluation",
		zap.String("domain", cfg.Domain),
		zap.String("concept", cfg.Concept),
		zap.Strings("sections", cfg.Sections),
		zap.String("label_noise", string(policy)),
		zap.Bool("empty_definition", cfg.EmptyDefinition),
		zap.Int("examples_per_label", cfg.ExamplesPerLabel),
		zap.Int("n_permutations", cfg.NPermutations),
		zap.Int("n_permutations_per_distance", cfg.NPermutationsPerDistance),
		zap.Bool("add_task_prompt", cfg.AddTaskPrompt),
		zap.Bool("add_previous_text", cfg.Dataset.PreviousTextKey != ""),
		zap.Bool("balanced", cfg.Dataset.Balanced),
		zap.String("source_key", cfg.Dataset.SourceKey),
		zap.Uint64("seed", cfg.Seed),
	)

	gen := NewGenerator(tax.Labels, policy, cfg.Seed, cfg.ShuffleGuidelines)
	rng := NewRand(cfg.Seed)
	aliases := cfg.Aliases()
	labelType := cfg.ResolvedLabelType()
	limit := cfg.CandidateLimit()

	var (
		baseline    *ports.ClassificationResult
		breakdown   domain.EffectTally
		firstOutput string
		idx         int
		candidates  int
	)

	for len(report.Table.Records) < cfg.NPermutations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		runBaseline := needBaseline && baseline == nil
		permIndex := len(report.Table.Records)
		if !runBaseline {
			permIndex++
		}
		runID := RunID(cfg.Model, cfg.Domain, cfg.Concept, sections, policy, cfg.NPermutations, permIndex)

		var perm *domain.LabelPermutation
		if runBaseline {
			perm = domain.IdentityPermutation(tax.Labels)
		} else {
			if candidates >= limit {
				logger.Warn("candidate limit reached", zap.Int("max_candidates", limit))
				report.Exhausted = true
				break
			}
			candidates++
			perm, err = gen.Generate(rng, idx)
			if err != nil {
				return nil, err
			}
		}
		if perm.Empty() {
			logger.Info("no permutations remaining")
			report.Exhausted = true
			break
		}

		var (
			distances map[domain.DistanceMetric]float64
			scorer    *EffectScorer
			predMets  []ports.PredictionMetric
		)
		if !runBaseline && relabels {
			distances, err = d.distances.Distances(perm, tax.Definitions, metrics)
			if err != nil {
				return nil, err
			}
			bucket := Bucket(distances[cfg.Stratify()], cfg.DistanceBucketWidth)
			if perBucket := cfg.NPermutationsPerDistance; perBucket > 0 && report.BucketCounts[bucket] >= perBucket {
				logger.Debug("discarding permutation", zap.Stringer("permutation", perm), zap.Int("bucket", bucket))
				report.Discarded++
				d.recordCounter(MetricPermutationsDiscarded, metricLabels)
				idx++
				continue
			}
			report.BucketCounts[bucket]++

			if baseline != nil {
				scorer = NewEffectScorer(perm, tax, aliases)
				predMets = append(predMets, scorer.AsMetric(baseline))
			}
		}

		prompt, hasPrompt, err := d.assembler.Assemble(AssembleInput{
			Taxonomy:           tax,
			Sections:           sections,
			Permutation:        perm,
			ExamplesPerLabel:   cfg.ExamplesPerLabel,
			LabelType:          labelType,
			EmptyDefinition:    cfg.EmptyDefinition,
			AddTaskInstruction: cfg.AddTaskPrompt,
			AddPreviousText:    cfg.Dataset.PreviousTextKey != "",
			NoisyChannel:       cfg.NoisyChannel,
			Rng:                rng,
		})
		if err != nil {
			return nil, err
		}

		logger.Info("processing label permutation",
			zap.String("run_id", runID),
			zap.Int("index", permIndex),
			zap.Int("total", cfg.NPermutations),
			zap.Bool("baseline", runBaseline),
			zap.Stringer("permutation", perm),
		)
		logger.Debug("context prompt", zap.String("prompt", prompt))

		req := ports.ClassificationRequest{
			RunID:           runID,
			Labels:          labelOptions(tax, perm, policy),
			LabelOrder:      perm.Presented(),
			LabelType:       labelType,
			SourceKey:       cfg.Dataset.SourceKey,
			TargetKey:       cfg.ResolvedTargetKey(),
			PreviousTextKey: cfg.Dataset.PreviousTextKey,
			Preprocess:      d.preprocess,
			Metrics:         predMets,
		}
		if hasPrompt {
			req.Context = &prompt
		}

		result, err := d.classify(ctx, req, metricLabels)
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", runID, err)
		}
		if firstOutput == "" {
			firstOutput = result.OutputPath
		}

		if runBaseline {
			baseline = result
			report.BaselineRunID = runID
			rng = NewRand(cfg.Seed)
			continue
		}

		record := domain.PermutationMetricRecord{
			Run:         len(report.Table.Records) + 1,
			RunID:       runID,
			Permutation: perm.Entries(),
			Distances:   distances,
			Accuracy:    result.Scores.ExactMatch,
			OutputPath:  result.OutputPath,
		}
		if scorer != nil {
			tally := scorer.Tally()
			record.Effects = tally.Totals()
			record.Breakdown = tally.Cells()
			breakdown.Merge(tally)
		}
		report.Table.Records = append(report.Table.Records, record)
		idx++

		d.recordCounter(MetricPermutationsAccepted, metricLabels)
		if d.metrics != nil {
			d.metrics.RecordGauge(MetricRunAccuracy, record.Accuracy, metricLabels)
			if dist, ok := distances[cfg.Stratify()]; ok {
				d.metrics.RecordHistogram(MetricPermutationDistance, dist, metricLabels)
			}
		}
		logger.Info("run complete",
			zap.String("run_id", runID),
			zap.Float64("accuracy", record.Accuracy),
			zap.Any("distances", distances),
			zap.Int("guideline_positive", record.Effects.Positive),
			zap.Int("guideline_neutral", record.Effects.Neutral),
			zap.Int("guideline_negative", record.Effects.Negative),
		)
	}

	report.Breakdown = breakdown.Cells()
	for _, cell := range report.Breakdown {
		logger.Info("guideline effect",
			zap.String("factual", string(cell.Key.Factual)),
			zap.String("expected", string(cell.Key.Expected)),
			zap.Int("positive", cell.Counts.Positive),
			zap.Int("neutral", cell.Counts.Neutral),
			zap.Int("negative", cell.Counts.Negative),
			zap.Float64("mean", cell.Counts.Mean()),
		)
	}

	if len(report.Table.Records) > 1 {
		report.Correlations = Correlations(&report.Table)
		for _, col := range report.Table.NumericColumns() {
			if col == domain.ColumnAccuracy {
				continue
			}
			logger.Info("correlation", zap.String("metric", col), zap.Any("coefficients", report.Correlations[col]))
		}
		logger.Info("permutation bucket counts", zap.Any("buckets", bucketFields(report.BucketCounts)))
	}

	if firstOutput != "" && d.tables != nil {
		path := filepath.Join(filepath.Dir(firstOutput), TableFileName)
		if err := d.tables.WriteTable(ctx, path, &report.Table); err != nil {
			return nil, fmt.Errorf("write permutation table: %w", err)
		}
		report.TablePath = path
		logger.Info("permutation table written", zap.String("path", path))
	}

	return report, nil
}

func (d *Driver) classify(
	ctx context.Context,
	req ports.ClassificationRequest,
	labels map[string]string,
) (*ports.ClassificationResult, error) {
	ctx, span := d.tracer.Start(ctx, "Driver.classify",
		trace.WithAttributes(attribute.String("run_id", req.RunID)))
	defer span.End()

	start := time.Now()
	result, err := d.classifier.Classify(ctx, req)
	if d.metrics != nil {
		d.metrics.RecordLatency(MetricClassifyLatency, time.Since(start), labels)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: classifier returned no result", ports.ErrInvalidResponse)
	}
	span.SetAttributes(attribute.Float64("accuracy", result.Scores.ExactMatch))
	return result, nil
}

func (d *Driver) recordCounter(name string, labels map[string]string) {
	if d.metrics != nil {
		d.metrics.RecordCounter(name, 1, labels)
	}
}

// labelOptions maps every presented label to the target name a prediction
// is recorded as. Decoys stand in for the true label they carry.
func labelOptions(tax *domain.Taxonomy, perm *domain.LabelPermutation, policy domain.NoisePolicy) map[domain.Label]string {
	out := make(map[domain.Label]string, perm.Len())
	for _, e := range perm.Entries() {
		if policy == domain.NoiseOOD {
			out[e.Presented] = tax.DisplayName(e.True)
		} else {
			out[e.Presented] = tax.DisplayName(e.Presented)
		}
	}
	return out
}

func bucketFields(counts map[int]int) map[string]int {
	out := make(map[string]int, len(counts))
	for b, n := range counts {
		out[strconv.Itoa(b)] = n
	}
	return out
}
