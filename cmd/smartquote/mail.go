package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"smartquote/internal/connectors"
	"smartquote/internal/listener"
	"smartquote/internal/pipeline"
)

func newMailCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Fetch and process requisition e-mails",
	}

	var (
		fetchProvider string
		label         string
		max           int
	)
	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Store new mailbox messages for processing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			conn, err := connectors.New(cmd.Context(), c.cfg, fetchProvider, c.logger)
			if err != nil {
				return err
			}
			fetch := connectors.NewFetchService(a.DB, c.cfg.RawMailDir, conn, c.logger)
			result, err := fetch.FetchAndStore(cmd.Context(), label, max)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mail fetch done provider=%s fetched=%d stored=%d new=%d\n", fetchProvider, result.Fetched, result.Stored, result.New)
			return nil
		},
	}
	fetchCmd.Flags().StringVar(&fetchProvider, "provider", connectors.ProviderGmail, "gmail|imap")
	fetchCmd.Flags().StringVar(&label, "label", "INBOX", "mailbox or label")
	fetchCmd.Flags().IntVar(&max, "max", 50, "max messages")

	var (
		processProvider string
		messageID       string
		batch           int
	)
	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Resolve stored e-mails that were not processed yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			a.RefreshCatalog(cmd.Context(), c.cfg.DefaultUnit)
			if strings.TrimSpace(messageID) != "" {
				res, err := a.Processor.ProcessByProviderMessageID(cmd.Context(), processProvider, messageID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "processed email id=%d terms=%d skipped=%t confirmed=%d pending=%d not_found=%d\n",
					res.EmailID, res.Processed, res.Skipped, res.Stats.Confirmed, res.Stats.Pending, res.Stats.NotFound)
				return nil
			}
			emails, terms, err := a.Processor.ProcessPending(cmd.Context(), batch, processProvider)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed pending emails=%d terms=%d\n", emails, terms)
			return nil
		},
	}
	processCmd.Flags().StringVar(&processProvider, "provider", "", "only e-mails of this provider (gmail|imap)")
	processCmd.Flags().StringVar(&messageID, "message-id", "", "process one e-mail by Message-ID (needs --provider)")
	processCmd.Flags().IntVar(&batch, "batch", 20, "batch size")

	cmd.AddCommand(fetchCmd, processCmd)
	return cmd
}

func newExportCmd(c *cli) *cobra.Command {
	var (
		emailID int
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the resolved items of one e-mail to a spreadsheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if emailID == 0 || strings.TrimSpace(out) == "" {
				return fmt.Errorf("--email-id and --out are required")
			}
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			rows, err := a.DB.GetExportRows(emailID)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("no export rows for email id=%d", emailID)
			}
			if err := pipeline.ExportRowsToXLSX(rows, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&emailID, "email-id", 0, "internal e-mail id")
	cmd.Flags().StringVar(&out, "out", "", "output .xlsx path")
	return cmd
}

func newListenCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Poll the mailbox and resolve requisitions until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			return listener.NewService(a.DB, c.cfg, a.Processor, c.logger).Serve(ctx)
		},
	}
}
