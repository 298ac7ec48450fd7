package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newProfilesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the target profiles and their byte budgets",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			for _, name := range a.cfg.Profiles.Names() {
				budget := a.cfg.Profiles[name]
				marker := ""
				if name == a.cfg.Profile {
					marker = " (default)"
				}
				fmt.Fprintf(a.out, "%-12s %10s  %d bytes%s\n", name, humanize.IBytes(uint64(budget)), budget, marker)
			}
			return nil
		},
	}
}
