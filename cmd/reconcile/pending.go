package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/catalog-backend/internal/app"
)

var (
	pendingLimit  int
	pendingRepair bool
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List recorded partial links, or replay them with --repair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.App) error {
			if pendingRepair {
				rep, err := a.Services.Reconcile.RepairPending(cmd.Context(), pendingLimit)
				if err != nil {
					return err
				}
				return printJSON(rep)
			}
			recs, err := a.Services.Reconcile.Pending(cmd.Context(), pendingLimit)
			if err != nil {
				return err
			}
			return printJSON(map[string]any{"pending": recs})
		})
	},
}

func init() {
	pendingCmd.Flags().IntVar(&pendingLimit, "limit", 100, "maximum records to read (0 for all)")
	pendingCmd.Flags().BoolVar(&pendingRepair, "repair", false, "replay each record against the store")
	rootCmd.AddCommand(pendingCmd)
}
