package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"smartquote/internal/catalog"
	"smartquote/internal/terminology"
)

var errNoRemoteCatalog = errors.New("remote catalog not configured: set CATALOG_BASE_URL")

func newCatalogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the per-unit catalog snapshots",
	}

	var syncUnit string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy unit catalogs from the remote API into the local snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if a.Sync == nil {
				return errNoRemoteCatalog
			}
			if syncUnit != "" {
				n, err := a.Sync.SyncUnit(cmd.Context(), syncUnit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "catalog sync complete unit=%s entries=%d\n", syncUnit, n)
				return nil
			}
			counts, err := a.Sync.SyncAll(cmd.Context())
			units := make([]string, 0, len(counts))
			for u := range counts {
				units = append(units, u)
			}
			sort.Strings(units)
			for _, u := range units {
				fmt.Fprintf(cmd.OutOrStdout(), "catalog sync complete unit=%s entries=%d\n", u, counts[u])
			}
			return err
		},
	}
	syncCmd.Flags().StringVar(&syncUnit, "unit", "", "sync a single unit (default: every unit the API lists)")

	var importUnit string
	importCmd := &cobra.Command{
		Use:   "import [file.xlsx]",
		Short: "Load a unit price list from a spreadsheet (default CATALOG_XLSX_PATH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := c.unit(importUnit)
			if err != nil {
				return err
			}
			path := c.cfg.CatalogXLSXPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no spreadsheet: pass a path or set CATALOG_XLSX_PATH")
			}
			entries, err := catalog.LoadXLSX(path, unit)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := catalog.NewSyncService(a.DB, nil, c.cfg, c.logger).ImportEntries(unit, entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog import complete unit=%s entries=%d\n", unit, len(entries))
			return nil
		},
	}
	importCmd.Flags().StringVar(&importUnit, "unit", "", "business unit (default DEFAULT_UNIT)")

	var (
		searchUnit  string
		searchLimit int
	)
	searchCmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search the unit catalog for a free-text term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := c.unit(searchUnit)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			entries, err := a.Catalog.GetCatalog(cmd.Context(), unit)
			if err != nil {
				return err
			}
			hits := catalog.BuildIndex(entries).Search(args[0], searchLimit)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"id", "name", "category", "price"})
			for _, e := range hits {
				table.Append([]string{strconv.Itoa(e.ID), e.DisplayName, e.Category, strconv.FormatFloat(e.Price, 'f', 2, 64)})
			}
			table.Render()
			return nil
		},
	}
	searchCmd.Flags().StringVar(&searchUnit, "unit", "", "business unit (default DEFAULT_UNIT)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of entries")

	unitsCmd := &cobra.Command{
		Use:   "units",
		Short: "List the business units known to the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			lister, ok := a.Catalog.(catalog.UnitLister)
			if !ok {
				return errNoRemoteCatalog
			}
			units, err := lister.ListUnits(cmd.Context())
			if err != nil {
				return err
			}
			for _, u := range units {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}

	cmd.AddCommand(syncCmd, importCmd, searchCmd, unitsCmd)
	return cmd
}

func newTUSSCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tuss",
		Short: "Manage the TUSS procedure table",
	}
	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the stored TUSS table from a .json or .xlsx file (default TUSS_PATH)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.TUSSPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no TUSS file: pass a path or set TUSS_PATH")
			}
			terms, err := terminology.LoadFile(path)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.DB.ReplaceTUSSTerms(terms); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tuss import complete terms=%d\n", len(terms))
			return nil
		},
	}
	cmd.AddCommand(importCmd)
	return cmd
}
