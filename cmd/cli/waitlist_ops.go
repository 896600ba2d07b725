package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/akeren/snipit-waitlist/config"
	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/akeren/snipit-waitlist/pkg/constants"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

const cliOperationTimeout = 2 * time.Minute

// newBackend constructs a single named backend. The remote backend needs a
// live database connection; everything else is local.
func newBackend(name string, cfg *config.WaitlistConfig, logger *log.Logger, db *gorm.DB) (store.Backend, error) {
	switch name {
	case store.BackendFile:
		return store.NewFileBackend(cfg.DataDir, logger), nil
	case store.BackendMultiPath:
		return store.NewMultiPathBackend(cfg.DataDir, logger), nil
	case store.BackendMemory:
		return store.NewMemoryBackend(), nil
	case store.BackendRemote:
		if db == nil {
			return nil, fmt.Errorf("backend %q requires a configured database", name)
		}
		return store.NewRemoteBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown waitlist backend %q", name)
	}
}

// canonicalBackend builds the highest-priority configured backend, which owns
// the authoritative copy of the waitlist.
func canonicalBackend(cfg *config.WaitlistConfig, logger *log.Logger, db *gorm.DB) (store.Backend, error) {
	if len(cfg.Backends) == 0 {
		return nil, fmt.Errorf("no waitlist backends configured")
	}
	return newBackend(cfg.Backends[0], cfg, logger, db)
}

type waitlistExport struct {
	Count       int      `json:"count"`
	LastUpdated string   `json:"lastUpdated"`
	Emails      []string `json:"emails"`
}

// ExportWaitlist writes the canonical waitlist to stdout as CSV or JSON.
func ExportWaitlist(logger *log.Logger, format string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cliOperationTimeout)
	defer cancel()

	cfg := config.NewWaitlistConfig()

	var db *gorm.DB
	if len(cfg.Backends) > 0 && cfg.Backends[0] == store.BackendRemote {
		db = config.NewDatabaseOrNil(logger, &config.DBConfig{})
	}

	canonical, err := canonicalBackend(cfg, logger, db)
	if err != nil {
		return err
	}

	emails, err := canonical.Emails(ctx)
	if err != nil {
		return fmt.Errorf("failed to read waitlist from %s backend: %w", canonical.Name(), err)
	}

	lastUpdated, err := canonical.LastUpdated(ctx)
	if err != nil {
		logger.Warn("Failed to read lastUpdated", "backend", canonical.Name(), "error", err)
	}

	switch format {
	case "json":
		export := waitlistExport{
			Count:  len(emails),
			Emails: emails,
		}
		if !lastUpdated.IsZero() {
			export.LastUpdated = lastUpdated.UTC().Format(constants.RFC3339DateTimeFormat)
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(export)

	case "csv":
		writer := csv.NewWriter(os.Stdout)
		if err := writer.Write([]string{"email"}); err != nil {
			return err
		}
		for _, email := range emails {
			if err := writer.Write([]string{email}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()

	default:
		return fmt.Errorf("unknown export format %q (want csv or json)", format)
	}
}

// WaitlistStats prints per-backend entry counts and reachability. Backends
// that cannot be constructed or read are reported, not fatal; the point of
// the command is seeing which tiers hold data.
func WaitlistStats(logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cliOperationTimeout)
	defer cancel()

	cfg := config.NewWaitlistConfig()
	db := config.NewDatabaseOrNil(logger, &config.DBConfig{})

	names := append([]string{}, cfg.Backends...)
	if db != nil && !containsName(names, store.BackendRemote) {
		names = append(names, store.BackendRemote)
	}

	title := cases.Title(language.English)

	fmt.Printf("Waitlist backends (data dir: %s, duplicate policy: %s)\n", cfg.DataDir, cfg.DuplicatePolicy)

	for _, name := range names {
		label := title.String(name)

		backend, err := newBackend(name, cfg, logger, db)
		if err != nil {
			fmt.Printf("  %-10s unavailable: %v\n", label, err)
			continue
		}

		count, err := backend.Count(ctx)
		if err != nil {
			fmt.Printf("  %-10s unreachable: %v\n", label, err)
			continue
		}

		lastUpdated, _ := backend.LastUpdated(ctx)
		if lastUpdated.IsZero() {
			fmt.Printf("  %-10s %d entries\n", label, count)
		} else {
			fmt.Printf("  %-10s %d entries, last updated %s\n", label, count, lastUpdated.UTC().Format(constants.RFC3339DateTimeFormat))
		}
	}

	return nil
}

// ReconcileWaitlist copies canonical entries the remote database is missing.
// It is the manual recovery path after a replication outage: read both sides,
// diff by email, insert the difference with a reconcile source marker.
func ReconcileWaitlist(logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cliOperationTimeout)
	defer cancel()

	cfg := config.NewWaitlistConfig()

	db, err := config.NewDatabase(logger, &config.DBConfig{})
	if err != nil {
		return fmt.Errorf("reconcile requires a configured database: %w", err)
	}
	defer config.CloseDatabase(db, logger)

	canonical, err := canonicalBackend(cfg, logger, nil)
	if err != nil {
		return err
	}

	emails, err := canonical.Emails(ctx)
	if err != nil {
		return fmt.Errorf("failed to read canonical waitlist from %s backend: %w", canonical.Name(), err)
	}

	remote := store.NewRemoteBackend(db)

	remoteEmails, err := remote.Emails(ctx)
	if err != nil {
		return fmt.Errorf("failed to read remote waitlist: %w", err)
	}

	present := make(map[string]struct{}, len(remoteEmails))
	for _, email := range remoteEmails {
		present[email] = struct{}{}
	}

	inserted, skipped, failed := 0, 0, 0

	for _, email := range emails {
		if _, ok := present[email]; ok {
			skipped++
			continue
		}

		entry := &models.WaitlistEntry{
			Email:  email,
			Source: models.WaitlistSourceReconcile,
		}

		switch addErr := remote.Add(ctx, entry); {
		case addErr == nil:
			inserted++
		case store.IsDuplicate(addErr):
			skipped++
		default:
			failed++
			logger.Error("Failed to reconcile waitlist entry", "email", email, "error", addErr)
		}
	}

	logger.Info("Waitlist reconcile completed",
		"canonical_backend", canonical.Name(),
		"canonical_count", len(emails),
		"inserted", inserted,
		"skipped", skipped,
		"failed", failed,
	)

	fmt.Printf("Reconcile completed: %d inserted, %d already present, %d failed\n", inserted, skipped, failed)

	if failed > 0 {
		return fmt.Errorf("%d entries failed to reconcile", failed)
	}

	return nil
}

func containsName(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}
