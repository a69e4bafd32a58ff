package cli

import (
	"fmt"

	"github.com/fjod/go_cart/internal/order"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/spf13/cobra"
)

func repairCmd(load configLoader) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair-order-numbers",
		Short: "Give orders with missing, duplicate or non-integer numbers a fresh one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			db, err := connectMongo(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Client().Disconnect(ctx)

			repo := repository.NewOrderRepository(db, cfg.Orders.NumberFloor)
			assignments, err := order.RepairOrderNumbers(ctx, repo, cfg.Orders.NumberFloor, dryRun)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, a := range assignments {
				fmt.Fprintf(out, "%s -> %d\n", a.ID, a.Number)
			}
			fmt.Fprintf(out, "%d orders renumbered\n", len(assignments))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without writing")

	return cmd
}
