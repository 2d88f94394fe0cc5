package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Jaberkh/Nut-test/app/frame"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := frame.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Immediate pass before cron: an empty dataset bootstraps right away
	// instead of waiting for the first tick.
	go app.Scheduler.RunOnce(ctx)

	app.Scheduler.Start()

	if serverErr := frame.NewServer(app); serverErr != nil {
		app.Logger.Fatal("Unable to initialize server", zap.Error(serverErr))
	}

	app.Start(ctx)
}
