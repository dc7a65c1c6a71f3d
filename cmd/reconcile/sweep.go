package main

import (
	"github.com/spf13/cobra"

	"github.com/yungbote/catalog-backend/internal/app"
	"github.com/yungbote/catalog-backend/internal/services"
)

var sweepMode string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Scan both collections for dangling and duplicate references",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var mode services.ReconcileMode
		if sweepMode != "" {
			m, err := services.ParseReconcileMode(sweepMode)
			if err != nil {
				return err
			}
			mode = m
		}
		return withApp(func(a *app.App) error {
			rep, err := a.Services.Reconcile.Sweep(cmd.Context(), mode)
			if err != nil {
				return err
			}
			return printJSON(rep)
		})
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepMode, "mode", "", "report or repair (defaults to reconcile.mode)")
	rootCmd.AddCommand(sweepCmd)
}
