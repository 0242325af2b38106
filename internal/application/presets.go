package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/thefonseca/concept-guidelines/internal/domain"
)

// Sweep presets reproduce the published experiment grids.
const (
	// PresetGuidelines runs the factual guideline and its four corruptions.
	PresetGuidelines = "guidelines"
	// PresetFactuality samples random relabelings stratified by distance and
	// measures the guideline effect of each.
	PresetFactuality = "factuality"
)

// SweepRun is one named configuration of a sweep.
type SweepRun struct {
	Name   string
	Config EvaluationConfig
}

type presetFunc func(base EvaluationConfig) []SweepRun

var presets = map[string]presetFunc{
	PresetGuidelines: guidelinesPreset,
	PresetFactuality: factualityPreset,
}

// PresetNames lists the available presets, sorted.
func PresetNames() []string {
	out := make([]string, 0, len(presets))
	for name := range presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ExpandPreset derives the runs of a preset from base. Every run uses the
// definition section, balanced sampling and the base seed.
func ExpandPreset(name string, base EvaluationConfig) ([]SweepRun, error) {
	fn, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q (known: %s)",
			domain.ErrInvalidConfiguration, name, strings.Join(PresetNames(), ", "))
	}
	base.Sections = []string{string(domain.SectionDefinition)}
	base.Dataset.Balanced = true
	return fn(base), nil
}

func guidelinesPreset(base EvaluationConfig) []SweepRun {
	variant := func(name string, policy domain.NoisePolicy, emptyDef bool) SweepRun {
		cfg := base
		cfg.Sections = append([]string(nil), base.Sections...)
		cfg.LabelNoise = string(policy)
		cfg.EmptyDefinition = emptyDef
		cfg.NPermutations = 1
		cfg.MeasureGuidelineEffect = false
		return SweepRun{Name: name, Config: cfg}
	}
	return []SweepRun{
		variant("factual", domain.NoiseNone, false),
		variant("nonfactual", domain.NoiseNonfactual, false),
		variant("empty_def", domain.NoiseNone, true),
		variant("ood", domain.NoiseOOD, false),
		variant("ood_empty_def", domain.NoiseOOD, true),
	}
}

func factualityPreset(base EvaluationConfig) []SweepRun {
	cfg := base
	cfg.LabelNoise = string(domain.NoiseRandom)
	cfg.MeasureGuidelineEffect = true
	cfg.ShuffleGuidelines = true
	if cfg.NPermutations <= 1 {
		cfg.NPermutations = 60
	}
	if cfg.NPermutationsPerDistance == 0 {
		cfg.NPermutationsPerDistance = 10
	}
	return []SweepRun{{Name: "factuality", Config: cfg}}
}
