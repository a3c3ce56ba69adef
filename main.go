package main

import (
	"context"
	"flag"
	"log"
	"os"

	"duoclean/internal/cleanup"
	"duoclean/internal/config"
	"duoclean/internal/duo"
	"duoclean/internal/server"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	runCleanup := flag.Bool("cleanup", false, "Run a one-shot cleanup batch instead of serving the dashboard")
	dryRun := flag.Bool("dry-run", false, "Preview actions without making changes (with -cleanup)")
	interactive := flag.Bool("interactive", false, "Confirm each deletion (with -cleanup)")
	usernameFile := flag.String("usernames", "", "File with one username per line (with -cleanup)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("=== Duo Student Cleanup ===")
	log.Printf("Version: %s", version)

	if *runCleanup {
		os.Exit(runBatch(cfg, *dryRun, *interactive, *usernameFile))
	}

	log.Printf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := server.Start(cfg, version); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func runBatch(cfg *config.Config, dryRun, interactive bool, usernameFile string) int {
	client := duo.NewClient(
		cfg.Duo.IntegrationKey,
		cfg.Duo.SecretKey,
		cfg.Duo.APIHost,
		cfg.Duo.CallsPerMinute,
		cfg.Duo.MaxRetries,
		cfg.Duo.Timeout(),
	)

	if usernameFile == "" {
		usernameFile = cfg.Cleanup.UsernameFile
	}

	runner := cleanup.NewRunner(client, cfg.Cleanup)
	report, err := runner.Run(context.Background(), cleanup.Options{
		DryRun:       dryRun,
		Interactive:  interactive,
		UsernameFile: usernameFile,
	})
	if err != nil {
		log.Printf("Cleanup run failed: %v", err)
		return 1
	}

	report.PrintSummary()
	return 0
}
