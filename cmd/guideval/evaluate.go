package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thefonseca/concept-guidelines/internal/application"
	"github.com/thefonseca/concept-guidelines/internal/domain"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

// overrides are config fields settable from the command line.
type overrides struct {
	configPath    string
	domain        string
	concept       string
	model         string
	datasetPath   string
	targetKey     string
	outputDir     string
	labelNoise    string
	sections      []string
	nPermutations int
	maxSamples    int
	seed          uint64
	cachePath     string
	balanced      bool
}

var evalFlags overrides

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Run one guideline perturbation evaluation",
	Long: `Loads an evaluation config, applies command-line overrides and runs the
evaluation. Use a "mock/<name>" model for a dry run without provider calls.

Example:
  guideval evaluate --config eval.yaml --label-noise random --n-permutations 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := evalFlags.resolve(cmd)
		if err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}
		_, err = runEvaluation(cmd.Context(), cmd.OutOrStdout(), cfg, store)
		return err
	},
}

func init() {
	addOverrideFlags(evaluateCmd, &evalFlags)
	evaluateCmd.Flags().StringVar(&evalFlags.labelNoise, "label-noise", "", "Noise policy: none, nonfactual, ood or random")
	evaluateCmd.Flags().StringSliceVar(&evalFlags.sections, "sections", nil, "Guideline sections to render (definition, examples)")
	evaluateCmd.Flags().IntVar(&evalFlags.nPermutations, "n-permutations", 0, "Number of accepted runs")
}

func addOverrideFlags(cmd *cobra.Command, o *overrides) {
	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Evaluation config YAML")
	f.StringVar(&o.domain, "domain", "", "Guideline domain")
	f.StringVar(&o.concept, "concept", "", "Concept within the domain")
	f.StringVarP(&o.model, "model", "m", "", `Classifier model as "provider/model"`)
	f.StringVar(&o.datasetPath, "dataset", "", "Dataset CSV")
	f.StringVar(&o.targetKey, "target-key", "", "Dataset column with the reference label")
	f.StringVarP(&o.outputDir, "output-dir", "o", "", "Output directory")
	f.IntVar(&o.maxSamples, "max-samples", 0, "Maximum balanced sample size")
	f.Uint64Var(&o.seed, "seed", 0, "Random seed")
	f.StringVar(&o.cachePath, "cache", "", "SQLite file caching completions")
	f.BoolVar(&o.balanced, "balanced", false, "Sample the same number of rows per class")
}

// resolve loads the config file, if any, over the defaults and applies
// the flags that were set explicitly.
func (o *overrides) resolve(cmd *cobra.Command) (*application.EvaluationConfig, error) {
	cfg := application.DefaultEvaluationConfig()
	if o.configPath != "" {
		loaded, err := application.LoadEvaluationConfig(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	changed := cmd.Flags().Changed
	if changed("domain") {
		cfg.Domain = o.domain
	}
	if changed("concept") {
		cfg.Concept = o.concept
	}
	if changed("model") {
		cfg.Model = o.model
	}
	if changed("dataset") {
		cfg.Dataset.Path = o.datasetPath
	}
	if changed("target-key") {
		cfg.Dataset.TargetKey = o.targetKey
	}
	if changed("output-dir") {
		cfg.OutputDir = o.outputDir
	}
	if changed("label-noise") {
		cfg.LabelNoise = o.labelNoise
	}
	if changed("sections") {
		cfg.Sections = o.sections
	}
	if changed("n-permutations") {
		cfg.NPermutations = o.nPermutations
	}
	if changed("max-samples") {
		cfg.Dataset.MaxSamples = o.maxSamples
	}
	if changed("seed") {
		cfg.Seed = o.seed
	}
	if changed("cache") {
		cfg.Classifier.CachePath = o.cachePath
	}
	if changed("balanced") {
		cfg.Dataset.Balanced = o.balanced
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func runEvaluation(ctx context.Context, w io.Writer, cfg *application.EvaluationConfig, store ports.GuidelineStore) (*domain.EvaluationReport, error) {
	rt, err := newRuntime(cfg, store)
	if err != nil {
		return nil, err
	}
	defer rt.Close()

	rep, err := rt.driver.Evaluate(ctx, cfg)
	if err != nil {
		return nil, err
	}
	printReport(w, rep)
	logger.Info("evaluation finished",
		zap.String("evaluation_id", rep.ID),
		zap.Int("accepted", len(rep.Table.Records)),
		zap.String("table", rep.TablePath))
	return rep, nil
}

func printReport(w io.Writer, rep *domain.EvaluationReport) {
	_, _ = fmt.Fprintf(w, "Evaluation %s (%s/%s, policy %s)\n", rep.ID, rep.Domain, rep.Concept, rep.Policy)
	for _, r := range rep.Table.Records {
		_, _ = fmt.Fprintf(w, "  run %d  accuracy=%.4f", r.Run, r.Accuracy)
		for _, m := range rep.Table.Metrics {
			_, _ = fmt.Fprintf(w, "  %s=%.4f", m.ColumnName(), r.Distances[m])
		}
		if rep.Table.TrackEffects {
			_, _ = fmt.Fprintf(w, "  effects(+/0/-)=%d/%d/%d", r.Effects.Positive, r.Effects.Neutral, r.Effects.Negative)
		}
		_, _ = fmt.Fprintln(w)
	}
	if rep.Discarded > 0 || rep.Exhausted {
		_, _ = fmt.Fprintf(w, "  discarded=%d exhausted=%t\n", rep.Discarded, rep.Exhausted)
	}
	for _, cell := range rep.Breakdown {
		pos, neu, neg := cell.Counts.Shares()
		_, _ = fmt.Fprintf(w, "  effect %s->%s  n=%d mean=%.3f positive=%.3f neutral=%.3f negative=%.3f\n",
			cell.Key.Factual, cell.Key.Expected, cell.Counts.Total(), cell.Counts.Mean(), pos, neu, neg)
	}
	if len(rep.Correlations) > 0 {
		cols := make([]string, 0, len(rep.Correlations))
		for c := range rep.Correlations {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, c := range cols {
			if v, ok := rep.Correlations[c][domain.ColumnAccuracy]; ok && c != domain.ColumnAccuracy {
				_, _ = fmt.Fprintf(w, "  corr(%s, accuracy)=%.4f\n", c, v)
			}
		}
	}
	if rep.TablePath != "" {
		_, _ = fmt.Fprintf(w, "  table: %s\n", rep.TablePath)
	}
}
