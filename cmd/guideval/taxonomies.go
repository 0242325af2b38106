package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var taxonomiesCmd = &cobra.Command{
	Use:   "taxonomies",
	Short: "List the available guideline domains and concepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, d := range store.Domains() {
			_, _ = fmt.Fprintln(w, d)
			for _, c := range store.Concepts(d) {
				tax, err := store.Lookup(d, c)
				if err != nil {
					return err
				}
				labels := make([]string, len(tax.Labels))
				for i, l := range tax.Labels {
					labels[i] = tax.DisplayName(l)
				}
				_, _ = fmt.Fprintf(w, "  %s: %s\n", c, strings.Join(labels, ", "))
			}
		}
		return nil
	},
}
