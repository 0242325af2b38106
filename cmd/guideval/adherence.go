package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thefonseca/concept-guidelines/infrastructure/report"
	"github.com/thefonseca/concept-guidelines/internal/domain"
)

var adherenceCmd = &cobra.Command{
	Use:   "adherence <glob>...",
	Short: "Summarize guideline adherence across prediction files",
	Long: `Aggregates every guideline_match_{factual}_{expected} column of the
matched prediction files and prints, per cell, the mean outcome and the share
of positive (followed the renamed guideline), neutral (kept the factual
answer) and negative (moved elsewhere) outcomes.

Example:
  guideval adherence 'output/*random-definition*/predictions.csv'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		for _, pattern := range args {
			matches, err := filepath.Glob(pattern)
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			paths = append(paths, matches...)
		}
		if len(paths) == 0 {
			return fmt.Errorf("no files match %v", args)
		}

		summaries, err := report.AggregateEffects(paths)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "FACTUAL\tEXPECTED\tN\tAVG\tPOSITIVE\tNEUTRAL\tNEGATIVE")
		for _, s := range summaries {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%.3f\t%.3f\t%.3f\t%.3f\n",
				s.Key.Factual, s.Key.Expected, s.Total(), s.Mean,
				s.Share(domain.OutcomeFaithful), s.Share(domain.OutcomeIgnored), s.Share(domain.OutcomeOther))
		}
		return tw.Flush()
	},
}
