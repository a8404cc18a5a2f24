package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"brewbook/internal/app"
	"brewbook/internal/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfgFile  string
	logLevel string
	cfg      *config.Config
}

func newRootCommand() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "brewbook",
		Short:         "Scrape, generate, and search drink recipes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(c.cfgFile)
			if err != nil {
				return err
			}
			if c.logLevel != "" {
				cfg.Logging.Level = c.logLevel
			}
			c.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(
		c.scrapeCommand(),
		classifyCommand(),
		c.generateCommand(),
		c.searchCommand(),
		c.migrateCommand(),
	)
	return root
}

// services builds the application services. Logs go to stderr so tables on
// stdout stay clean.
func (c *cli) services(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	logger, err := app.NewLogger(c.cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	services, err := app.New(ctx, c.cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}
	return services, nil
}
