package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/iosextract/internal/config"
)

func newFiltersCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "filters",
		Short: "Show the catalog passes that would run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(cfg.Filters))
			for _, f := range cfg.Filters {
				rows = append(rows, []string{f.Name, f.Domain, f.Path, f.Category.String(), f.OutputDir})
			}
			out := cmd.OutOrStdout()
			_, err = fmt.Fprintln(out, renderTable(
				[]string{"Name", "Domain", "Path", "Category", "Output"},
				rows,
				nil,
				isTerminal(out),
			))
			return err
		},
	}
}
