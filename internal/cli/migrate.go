package cli

import (
	"github.com/fjod/go_cart/internal/repository"
	"github.com/spf13/cobra"
)

func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create collections and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			db, err := connectMongo(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Client().Disconnect(cmd.Context())

			return repository.RunMigrations(db)
		},
	}
}
