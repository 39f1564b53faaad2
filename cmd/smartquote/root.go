package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartquote/internal/app"
	"smartquote/internal/config"
	"smartquote/internal/logging"
)

// cli carries what every subcommand needs. The application is opened lazily
// so that help and flag errors never touch the database.
type cli struct {
	cfg    config.Config
	logger *zap.Logger
	app    *app.App

	logLevel string
	dbPath   string
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "smartquote",
		Short:         "Resolve laboratory exam requisitions against unit price catalogs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init()
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "sqlite path; overrides DB_PATH")

	root.AddCommand(
		newResolveCmd(c),
		newAuditCmd(c),
		newLearnCmd(c),
		newCatalogCmd(c),
		newTUSSCmd(c),
		newMailCmd(c),
		newExportCmd(c),
		newListenCmd(c),
		newReportCmd(c),
	)
	return root
}

// execute runs the command tree and releases the application afterwards.
// Cobra skips post-run hooks when a command fails, so closing happens here.
func execute(c *cli, root *cobra.Command) (err error) {
	defer func() {
		if cerr := c.close(); err == nil {
			err = cerr
		}
	}()
	return root.Execute()
}

func (c *cli) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	return nil
}

func (c *cli) open(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.Open(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func (c *cli) unit(flag string) (string, error) {
	unit := c.cfg.UnitOrDefault(flag)
	if unit == "" {
		return "", fmt.Errorf("no business unit: set DEFAULT_UNIT or pass --unit")
	}
	return unit, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
