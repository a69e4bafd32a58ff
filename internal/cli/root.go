package cli

import (
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

// NewRootCommand returns the storefront command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart, checkout and order reconciliation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.New(cfg.Log.Level, cfg.Log.Format)
		return cfg, nil
	}

	root.AddCommand(serveCmd(load))
	root.AddCommand(migrateCmd(load))
	root.AddCommand(repairCmd(load))

	return root
}

type configLoader func() (*config.Config, error)
