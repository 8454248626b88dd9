package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eringen/folio"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configFile string
	envFiles   []string
}

func newRootCmd(version string) *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "folio",
		Short:         "Personal site backend: guest list, articles and CV",
		Version:       version,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "",
		"config file (default: ./folio.yaml when present)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil,
		"dotenv files to load before reading the environment (default: .env)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newSeedCmd(g),
		newTokenCmd(g),
	)
	return root
}

// load reads the dotenv files and the config, then builds the logger. Log
// output goes to the command's stderr.
func (g *globals) load(cmd *cobra.Command) (folio.SiteConfig, *slog.Logger, error) {
	if err := folio.LoadDotEnv(g.envFiles...); err != nil {
		return folio.SiteConfig{}, nil, err
	}
	cfg, err := folio.LoadConfig(g.configFile)
	if err != nil {
		return folio.SiteConfig{}, nil, err
	}
	logger, err := folio.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return folio.SiteConfig{}, nil, err
	}
	return cfg, logger, nil
}

// openStore opens and migrates the configured database.
func openStore(cmd *cobra.Command, cfg folio.SiteConfig) (*folio.Store, error) {
	store, err := folio.NewStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
