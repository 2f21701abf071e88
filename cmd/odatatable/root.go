package main

import (
	"github.com/spf13/cobra"
)

// globals are the persistent flags; they override the config file.
type globals struct {
	configPath string
	logLevel   string
	format     string
}

// open loads the configuration and builds the shared app.
func (g *globals) open(cmd *cobra.Command) (*app, error) {
	cfg, err := LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.format != "" {
		cfg.Output.Format = g.format
		if err := validateConfig(cfg); err != nil {
			return nil, err
		}
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg, logger)
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	rootCmd := &cobra.Command{
		Use:   "odatatable",
		Short: "Build and run OData queries from table state",
		Long: `odatatable turns a table's sorting, paging, filtering and column
visibility into OData v4 query options, derives columns from the service
metadata and fetches pages of rows.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "", "config file (default ./odatatable.yaml)")
	flags.StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&g.format, "format", "o", "", "output format (text, json, msgpack)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDiscoverCmd(g))
	rootCmd.AddCommand(newColumnsCmd(g))
	rootCmd.AddCommand(newQueryCmd(g))
	rootCmd.AddCommand(newFetchCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	return rootCmd
}
