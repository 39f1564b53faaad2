package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"smartquote/internal"
	"smartquote/internal/audit"
	"smartquote/internal/pipeline"
)

type resolveOutput struct {
	internal.BatchResult
	Audit internal.AuditReport `json:"audit"`
}

func newResolveCmd(c *cli) *cobra.Command {
	var (
		unit    string
		file    string
		xlsxOut string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [terms...]",
		Short: "Resolve exam terms or a requisition document against a unit catalog",
		Example: `  smartquote resolve --unit centro "Hemograma completo" "TGO/TGP"
  smartquote resolve --unit centro --file pedido.eml --xlsx-out out/pedido.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.unit(unit)
			if err != nil {
				return err
			}
			lines, err := inputLines(file, args)
			if err != nil {
				return err
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.RefreshCatalog(cmd.Context(), u)

			out, err := a.Processor.ProcessLines(cmd.Context(), lines, u, nil)
			if err != nil {
				return err
			}
			if xlsxOut != "" {
				if err := pipeline.ExportItemsToXLSX(out.Batch.Items, xlsxOut); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, resolveOutput{BatchResult: out.Batch, Audit: out.Audit})
			}
			printBatch(w, out.Batch)
			printAudit(w, out.Audit)
			if xlsxOut != "" {
				fmt.Fprintf(w, "exported %d rows to %s\n", len(out.Batch.Items), xlsxOut)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "business unit (default DEFAULT_UNIT)")
	cmd.Flags().StringVar(&file, "file", "", "requisition document: .eml, .html, .xlsx, .pdf or text")
	cmd.Flags().StringVar(&xlsxOut, "xlsx-out", "", "write the resolved items to this spreadsheet")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the batch as JSON")
	return cmd
}

func newAuditCmd(c *cli) *cobra.Command {
	var (
		unit   string
		file   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Resolve a document and report lines that look like exams but were missed",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := c.unit(unit)
			if err != nil {
				return err
			}
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			lines, err := pipeline.ExtractLinesFromFile(file)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			candidates := pipeline.BuildCandidates(lines, nil, u)
			terms := make([]string, 0, len(candidates))
			for _, cand := range candidates {
				terms = append(terms, cand.RawText)
			}
			batch, err := a.Resolver.ResolveBatch(cmd.Context(), terms, u)
			if err != nil {
				return err
			}
			raw := make([]string, 0, len(lines))
			for _, l := range lines {
				raw = append(raw, l.RawLine)
			}
			report := audit.Audit(raw, batch.Items)

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printAudit(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "", "business unit (default DEFAULT_UNIT)")
	cmd.Flags().StringVar(&file, "file", "", "requisition document")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newLearnCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "learn <original> <catalog name>",
		Short: "Teach the resolver that a term means a catalog entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Learning.Learn(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "learned %q -> %q\n", args[0], args[1])
			return nil
		},
	}
	cmd.AddCommand(newLearnListCmd(c))
	return cmd
}

func newLearnListCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every learned mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			mappings, err := a.Learning.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), mappings)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"key", "canonical", "updated"})
			table.SetAutoWrapText(false)
			for _, m := range mappings {
				table.Append([]string{m.SourceKey, m.CanonicalName, m.UpdatedAt})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the mappings as JSON")
	return cmd
}

func inputLines(file string, args []string) ([]internal.ExtractedLine, error) {
	switch {
	case file != "" && len(args) > 0:
		return nil, fmt.Errorf("pass terms or --file, not both")
	case file != "":
		return pipeline.ExtractLinesFromFile(file)
	case len(args) > 0:
		return pipeline.LinesFromStrings(args), nil
	default:
		return nil, fmt.Errorf("nothing to resolve: pass terms or --file")
	}
}

func printBatch(w io.Writer, b internal.BatchResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "term", "status", "strategy", "conf", "match", "price"})
	table.SetAutoWrapText(false)
	for i, it := range b.Items {
		match, price := "", ""
		if it.SelectedMatch != nil && *it.SelectedMatch < len(it.Matches) {
			m := it.Matches[*it.SelectedMatch]
			match = m.DisplayName
			price = strconv.FormatFloat(m.Price, 'f', 2, 64)
		} else if len(it.Matches) > 1 {
			match = fmt.Sprintf("%d options", len(it.Matches))
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			it.Term,
			string(it.Status),
			string(it.Strategy),
			strconv.FormatFloat(it.Confidence, 'f', 0, 64),
			match,
			price,
		})
	}
	table.Render()

	s := b.Stats
	fmt.Fprintf(w, "unit=%s total=%d confirmed=%d pending=%d not_found=%d duplicate=%d catalog=%d",
		b.Unit, s.Total, s.Confirmed, s.Pending, s.NotFound, s.Duplicate, s.CatalogCount)
	if s.CatalogUnavailable {
		fmt.Fprint(w, " (catalog unavailable)")
	}
	fmt.Fprintln(w)
}

func printAudit(w io.Writer, r internal.AuditReport) {
	fmt.Fprintf(w, "coverage=%.1f accuracy=%.1f\n", r.CoverageScore, r.AccuracyScore)
	if len(r.MissedCandidates) > 0 {
		fmt.Fprintf(w, "missed: %s\n", strings.Join(r.MissedCandidates, "; "))
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "- %s\n", rec)
	}
}
