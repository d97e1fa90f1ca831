package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/iosextract/internal/sender"
)

func newReportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "report <output-root>",
		Short: "Summarise the extraction report left in an output tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := sender.ReadReport(filepath.Join(args[0], sender.ReportFileName))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Run %s (%s %s) on %s\n", report.ID, report.ToolName, report.ToolVersion, report.Hostname)
			_, _ = fmt.Fprintf(out, "Backup %s, catalog sha256 %s\n", report.BackupRoot, report.CatalogSHA256)
			_, _ = fmt.Fprintf(out, "Started %s, took %s, %d destinations\n",
				report.StartTimestamp.Format("2006-01-02 15:04:05Z07:00"), report.Duration, report.ResolvedCount)
			printSummary(out, report)
			return nil
		},
	}
}
