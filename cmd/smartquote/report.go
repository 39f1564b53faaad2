package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smartquote/internal/curation"
)

func newReportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Curation reports built from the resolution journal",
	}

	var (
		out   string
		limit int
	)
	missingCmd := &cobra.Command{
		Use:   "missing",
		Short: "List the most requested terms the catalogs lack and the fuzzy matches to review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			report, err := curation.Build(a.DB, limit, time.Now())
			if err != nil {
				return err
			}
			if out == "" {
				return report.WriteMarkdown(cmd.OutOrStdout())
			}
			if err := report.WriteFile(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (missing=%d suggestions=%d)\n", out, len(report.Missing), len(report.Suggestions))
			return nil
		},
	}
	missingCmd.Flags().StringVar(&out, "out", "", "write the markdown report to this file")
	missingCmd.Flags().IntVar(&limit, "limit", curation.DefaultLimit, "rows per section")

	cmd.AddCommand(missingCmd)
	return cmd
}
