package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/catalog-backend/internal/app"
	"github.com/yungbote/catalog-backend/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a.Start()
	err = a.Run(ctx)
	if err != nil {
		a.Log.Error("server exited", "error", err)
	}
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}
