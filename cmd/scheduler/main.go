package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/habitforge/challenge-engine/app/scheduler"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Local development convenience; the deployed environment sets real vars.
	_ = godotenv.Load()

	app, err := scheduler.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	// Start cron scheduler
	app.StartCron()

	// Setup server
	app.SetupServer()

	// Start server
	app.Start(ctx)
}
