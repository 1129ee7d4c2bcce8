// Command server runs the job-search API and its scheduled pipeline.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/seekerworks/jobpilot/internal/app"
	"github.com/seekerworks/jobpilot/internal/config"
)

func main() {
	// Optional; production deployments set real environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	err = a.Serve(ctx)
	if err != nil {
		a.Logger().Error("server failed: " + err.Error())
	} else {
		a.Logger().Info("shutting down")
	}
	a.Close()
	if err != nil {
		os.Exit(1)
	}
}
