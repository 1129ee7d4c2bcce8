// Command pilot runs one scrape-evaluate-apply pass and prints the run
// summary, for cron jobs and manual use.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/seekerworks/jobpilot/internal/app"
	"github.com/seekerworks/jobpilot/internal/config"
)

func main() {
	profile := flag.String("profile", "", "YAML search profile path (overrides SEARCH_PROFILE)")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *profile != "" {
		cfg.Scraper.ProfilePath = *profile
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	run, err := a.Runner().Run(ctx, "cli")
	a.Close()
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	fmt.Printf("run %s finished in %s\n", run.ID, run.Duration().Round(time.Second))
	fmt.Printf("  scraped:   %d (%d new)\n", run.Counters.Scraped, run.Counters.New)
	fmt.Printf("  evaluated: %d\n", run.Counters.Evaluated)
	fmt.Printf("  matched:   %d\n", run.Counters.Matched)
	fmt.Printf("  applied:   %d (%d failed)\n", run.Counters.Applied, run.Counters.Failed)
	fmt.Printf("  llm cost:  $%.4f\n", run.LLMCost)
	if run.Error != "" {
		fmt.Printf("  error:     %s\n", run.Error)
		os.Exit(1)
	}
}
