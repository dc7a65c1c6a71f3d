package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/catalog-backend/internal/app"
	"github.com/yungbote/catalog-backend/internal/platform/shutdown"
)

var rootCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Inspect and repair category/item link drift",
	Long: `reconcile runs the same sweep and ledger replay the server exposes under
/api/reconcile, using the server's configuration (CATALOG_CONFIG_PATH and
CATALOG_* environment variables).`,
	SilenceUsage: true,
}

func Execute() {
	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(fn func(a *app.App) error) error {
	a, err := app.New()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
