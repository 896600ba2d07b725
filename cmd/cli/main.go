package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/akeren/snipit-waitlist/config"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/pkg/migrations"
	"github.com/akeren/snipit-waitlist/pkg/utils"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		dbCfg := &config.DBConfig{}
		db, err := config.NewDatabase(logger, dbCfg)
		if err != nil {
			logger.Error("Failed to connect to database for migration", "error", err.Error())

			os.Exit(1)
		}

		sqlDB, err := db.DB()
		if err != nil {
			logger.Error("Failed to get SQL DB instance for migration", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				logger.Warn("Failed to close SQL DB after migration", "error", err.Error())
			}
		}()

		migrationsDir := utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", "migrations")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := migrations.Up(ctx, sqlDB, migrations.Config{Dir: migrationsDir, Logger: logger}); err != nil {
			logger.Error("Database migration failed", "error", err.Error())
			os.Exit(1)
		}

		logger.Info("Database migrations completed")
		return

	case "export":
		format := "csv"
		for _, arg := range args[1:] {
			if strings.HasPrefix(arg, "--format=") {
				format = strings.TrimPrefix(arg, "--format=")
			}
		}

		if err := ExportWaitlist(logger, format); err != nil {
			logger.Error("Waitlist export failed", "error", err.Error())
			os.Exit(1)
		}
		return

	case "stats":
		if err := WaitlistStats(logger); err != nil {
			logger.Error("Waitlist stats failed", "error", err.Error())
			os.Exit(1)
		}
		return

	case "reconcile":
		if err := ReconcileWaitlist(logger); err != nil {
			logger.Error("Waitlist reconcile failed", "error", err.Error())
			os.Exit(1)
		}
		return

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate                    Run database migrations and exit")
	fmt.Println("  export [--format=csv|json] Write the canonical waitlist to stdout")
	fmt.Println("  stats                      Show per-backend entry counts and reachability")
	fmt.Println("  reconcile                  Copy canonical entries the remote database is missing")
}
