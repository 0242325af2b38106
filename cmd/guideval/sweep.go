package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/thefonseca/concept-guidelines/internal/application"
)

var (
	sweepFlags  overrides
	sweepPreset string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run a preset grid of evaluations",
	Long: `Runs every configuration of a preset, each under its own output
subdirectory.

Presets:
  guidelines  factual, nonfactual, empty_def, ood and ood_empty_def runs
  factuality  random relabelings stratified by distance, with guideline effect

Example:
  guideval sweep --preset factuality --dataset data/financial_reports.csv \
    --target-key capital --max-samples 540 --model openai/gpt-4-0613`,
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := sweepFlags.resolve(cmd)
		if err != nil {
			return err
		}
		runs, err := application.ExpandPreset(sweepPreset, *base)
		if err != nil {
			return err
		}
		store, err := loadStore()
		if err != nil {
			return err
		}

		for i, run := range runs {
			cfg := run.Config
			cfg.OutputDir = filepath.Join(base.OutputDir, run.Name)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("preset run %s: %w", run.Name, err)
			}
			logger.Info("starting sweep run",
				zap.String("preset", sweepPreset),
				zap.String("run", run.Name),
				zap.Int("index", i+1),
				zap.Int("total", len(runs)))
			if _, err := runEvaluation(cmd.Context(), cmd.OutOrStdout(), &cfg, store); err != nil {
				return fmt.Errorf("preset run %s: %w", run.Name, err)
			}
		}
		return nil
	},
}

func init() {
	addOverrideFlags(sweepCmd, &sweepFlags)
	sweepCmd.Flags().StringVarP(&sweepPreset, "preset", "p", application.PresetGuidelines,
		"Preset: "+strings.Join(application.PresetNames(), ", "))
}
