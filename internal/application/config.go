package application

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// EvaluationConfig is the complete description of one guideline-perturbation
// evaluation: which taxonomy to corrupt, how to corrupt it, how many runs to
// sample and how to reach the classifier.
// Use LoadEvaluationConfig to read it from YAML; defaults come from
// DefaultEvaluationConfig and are overridden by the file.
type EvaluationConfig struct {
	// Domain names the guideline family, e.g. "financial".
	Domain string `yaml:"domain" validate:"required,min=1,max=100"`
	// Concept selects the label scheme inside the domain, e.g. "capital".
	Concept string `yaml:"concept" validate:"required,min=1,max=100"`
	// Sections lists the guideline blocks rendered into the context, in
	// order. An empty list evaluates the classifier without guidelines.
	Sections []string `yaml:"sections" validate:"max=8,dive,sectionkind"`
	// LabelNoise is the noise policy for sampled runs.
	LabelNoise string `yaml:"label_noise" validate:"noisepolicy"`
	// NPermutations is the number of accepted runs to collect.
	NPermutations int `yaml:"n_permutations" validate:"min=1,max=100000"`
	// NPermutationsPerDistance caps accepted runs per distance bucket.
	// Zero disables the cap.
	NPermutationsPerDistance int `yaml:"n_permutations_per_distance" validate:"min=0,max=100000"`
	// StratifyMetric is the distance used for bucketing.
	StratifyMetric string `yaml:"stratify_metric" validate:"distancemetric"`
	// DistanceBucketWidth is the rounding granularity of bucket keys.
	DistanceBucketWidth float64 `yaml:"distance_bucket_width" validate:"gt=0,lte=1"`
	// DistanceMetrics lists the distance columns recorded per run.
	DistanceMetrics []string `yaml:"distance_metrics" validate:"min=1,max=5,dive,distancemetric"`
	// MaxCandidates bounds the total number of candidate permutations drawn.
	// Zero derives a bound from NPermutations.
	MaxCandidates int `yaml:"max_candidates" validate:"min=0"`
	// ExamplesPerLabel truncates the exemplar list of each label.
	ExamplesPerLabel int `yaml:"examples_per_label" validate:"min=0,max=100"`
	// LabelType is the display name of the label kind. Empty derives
	// "{Domain} concept".
	LabelType string `yaml:"label_type" validate:"max=100"`
	// EmptyDefinition renders definition bullets without their text.
	EmptyDefinition bool `yaml:"empty_definition"`
	// AddTaskPrompt adds the header prompt and the task instruction block.
	AddTaskPrompt bool `yaml:"add_task_prompt"`
	// MeasureGuidelineEffect runs a factual baseline and scores every
	// prediction against it.
	MeasureGuidelineEffect bool `yaml:"measure_guideline_effect"`
	// ShuffleGuidelines draws the entry order from the enumeration of
	// orderings.
	ShuffleGuidelines bool `yaml:"shuffle_guidelines"`
	// NoisyChannel renders exemplars as "label: text".
	NoisyChannel bool `yaml:"noisy_channel"`
	// LabelAliases maps legacy prediction names onto current labels before
	// guideline-effect scoring.
	LabelAliases map[string]string `yaml:"label_aliases" validate:"max=50"`
	// Seed drives every random choice of the evaluation.
	Seed uint64 `yaml:"seed"`
	// Model is the classifier model in "provider/model" form.
	Model string `yaml:"model" validate:"required,modelformat"`
	// Dataset describes the evaluation data.
	Dataset DatasetConfig `yaml:"dataset"`
	// OutputDir receives one directory per run plus the permutation table.
	OutputDir string `yaml:"output_dir" validate:"required"`
	// Classifier tunes the LLM-backed classifier.
	Classifier ClassifierConfig `yaml:"classifier"`
}

// DatasetConfig locates the evaluation data and names its columns.
type DatasetConfig struct {
	// Path is a CSV file with a header row.
	Path string `yaml:"path" validate:"required"`
	// SourceKey is the column holding the text to classify.
	SourceKey string `yaml:"source_key" validate:"required"`
	// TargetKey is the column holding the reference label. Empty uses the
	// concept name.
	TargetKey string `yaml:"target_key"`
	// PreviousTextKey optionally names a column with preceding text. When
	// set, the context ends with a previous-text line.
	PreviousTextKey string `yaml:"previous_text_key"`
	// Balanced samples the same number of rows per class.
	Balanced bool `yaml:"balanced"`
	// MaxSamples bounds the balanced sample. Zero uses the minority class
	// size per class.
	MaxSamples int `yaml:"max_samples" validate:"min=0"`
}

// ClassifierConfig tunes request dispatch of the LLM-backed classifier.
type ClassifierConfig struct {
	// Concurrency bounds the number of in-flight completions.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=64"`
	// Temperature is passed to the provider.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
	// MaxTokens bounds each completion.
	MaxTokens int `yaml:"max_tokens" validate:"min=1,max=4096"`
	// TimeoutSeconds bounds each completion.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=1,max=3600"`
	// RequestsPerSecond rate-limits dispatch. Zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	// MaxRetries is the number of retries on transient provider errors.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
	// CachePath is an optional SQLite file caching completions.
	CachePath string `yaml:"cache_path"`
}

// DefaultLabelAliases maps a legacy label name to its replacement.
var DefaultLabelAliases = map[string]string{"Objective": "Motivation"}

// DefaultEvaluationConfig returns the configuration applied before a file or
// flags override it.
func DefaultEvaluationConfig() EvaluationConfig {
	return EvaluationConfig{
		Domain:              "financial",
		Concept:             "capital",
		Sections:            []string{string(domain.SectionDefinition)},
		LabelNoise:          string(domain.NoiseNone),
		NPermutations:       1,
		StratifyMetric:      string(domain.MetricExact),
		DistanceBucketWidth: DefaultBucketWidth,
		DistanceMetrics:     []string{string(domain.MetricExact), string(domain.MetricEdit)},
		ExamplesPerLabel:    1,
		AddTaskPrompt:       true,
		LabelAliases:        copyAliases(DefaultLabelAliases),
		Seed:                17,
		Dataset: DatasetConfig{
			SourceKey: "text",
		},
		OutputDir: "output",
		Classifier: ClassifierConfig{
			Concurrency:    4,
			MaxTokens:      20,
			TimeoutSeconds: 60,
			MaxRetries:     3,
		},
	}
}

func copyAliases(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Policy returns the parsed noise policy. Validated configs never fail to
// parse, so an unknown value degrades to NoiseNone.
func (c *EvaluationConfig) Policy() domain.NoisePolicy {
	p, err := domain.ParseNoisePolicy(c.LabelNoise)
	if err != nil {
		return domain.NoiseNone
	}
	return p
}

// SectionKinds returns the parsed section list, skipping unknown entries.
func (c *EvaluationConfig) SectionKinds() []domain.SectionKind {
	out := make([]domain.SectionKind, 0, len(c.Sections))
	for _, s := range c.Sections {
		if k, err := domain.ParseSectionKind(s); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// Metrics returns the parsed distance metrics with the stratification metric
// first and without duplicates.
func (c *EvaluationConfig) Metrics() []domain.DistanceMetric {
	seen := make(map[domain.DistanceMetric]bool)
	out := []domain.DistanceMetric{c.Stratify()}
	seen[c.Stratify()] = true
	for _, s := range c.DistanceMetrics {
		m, err := domain.ParseDistanceMetric(s)
		if err != nil || seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// Stratify returns the parsed stratification metric.
func (c *EvaluationConfig) Stratify() domain.DistanceMetric {
	m, err := domain.ParseDistanceMetric(c.StratifyMetric)
	if err != nil {
		return domain.MetricExact
	}
	return m
}

// ResolvedLabelType returns LabelType or the "{Domain} concept" default.
func (c *EvaluationConfig) ResolvedLabelType() string {
	if c.LabelType != "" {
		return c.LabelType
	}
	lt := c.Domain + " concept"
	return strings.ToUpper(lt[:1]) + lt[1:]
}

// ResolvedTargetKey returns the target column, defaulting to the concept.
func (c *EvaluationConfig) ResolvedTargetKey() string {
	if c.Dataset.TargetKey != "" {
		return c.Dataset.TargetKey
	}
	return c.Concept
}

// CandidateLimit returns the bound on candidate draws.
func (c *EvaluationConfig) CandidateLimit() int {
	if c.MaxCandidates > 0 {
		return c.MaxCandidates
	}
	return max(1000, 100*c.NPermutations)
}

// Aliases returns the label alias map in domain types.
func (c *EvaluationConfig) Aliases() map[domain.Label]domain.Label {
	out := make(map[domain.Label]domain.Label, len(c.LabelAliases))
	for k, v := range c.LabelAliases {
		out[domain.Label(k)] = domain.Label(v)
	}
	return out
}

// NewConfigValidator returns a validator with every custom evaluation tag
// registered.
func NewConfigValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := RegisterEvaluationValidators(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks c against its struct tags and the cross-field rules the
// tags cannot express.
func (c *EvaluationConfig) Validate() error {
	v, err := NewConfigValidator()
	if err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	if c.EmptyDefinition && !slices.Contains(c.SectionKinds(), domain.SectionDefinition) {
		return domain.NewConfigurationError("empty_definition",
			fmt.Errorf("%w: empty definitions need the definition section", domain.ErrInvalidConfiguration))
	}
	if c.MeasureGuidelineEffect && !c.Policy().Relabels() {
		return domain.NewConfigurationError("measure_guideline_effect",
			fmt.Errorf("%w: guideline effect needs a relabeling noise policy, got %q",
				domain.ErrInvalidConfiguration, c.Policy()))
	}
	return nil
}

// ParseEvaluationConfig decodes YAML over the defaults in strict mode and
// validates the result.
func ParseEvaluationConfig(data []byte) (*EvaluationConfig, error) {
	cfg := DefaultEvaluationConfig()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Strict mode - fail on unknown fields.
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %v", domain.ErrInvalidConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEvaluationConfig reads and validates a YAML configuration file.
func LoadEvaluationConfig(path string) (*EvaluationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseEvaluationConfig(data)
}
