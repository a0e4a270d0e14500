package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"climatecheck/internal/config"
	"climatecheck/migrations"
	"climatecheck/pkg/database"
	"climatecheck/pkg/logging"
	"climatecheck/pkg/metrics"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var script string
	switch *direction {
	case "up":
		script, err = migrations.Up()
	case "down":
		script, err = migrations.Down()
	default:
		fmt.Fprintf(os.Stderr, "Invalid direction %q (allowed: up, down)\n", *direction)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read migration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("climatecheck-migrate", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("climatecheck_migrate", prometheus.NewRegistry())

	db, err := database.Open(cfg.Database.ToDatabaseConfig(), logger, metricsCollector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Printf("Connected to %s database\n", db.Driver())
	fmt.Printf("Running migration: %s\n", *direction)

	if _, err := db.ExecContext(context.Background(), "migrate_"+*direction, script); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed successfully")
}
