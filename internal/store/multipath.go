package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

// MultiPathBackend scans a fixed, ordered list of candidate directories and
// commits each write to the first one that works. It exists for deployment
// targets where the canonical data directory may be read-only or missing
// entirely; the candidates trade durability for writability, ending with the
// working directory as the last resort. Candidates are never kept consistent
// with each other.
type MultiPathBackend struct {
	candidates []string
	logger     *log.Logger
	mu         sync.Mutex
}

func NewMultiPathBackend(dataDir string, logger *log.Logger) *MultiPathBackend {
	return &MultiPathBackend{
		candidates: candidateDirs(dataDir),
		logger:     logger,
	}
}

// candidateDirs builds the scan order: configured data dir, the platform temp
// dir, environment-provided temp/home paths, and finally the current
// directory. Duplicates and empty values are dropped while preserving order.
func candidateDirs(dataDir string) []string {
	raw := []string{
		dataDir,
		os.TempDir(),
		os.Getenv("TMPDIR"),
		os.Getenv("HOME"),
		".",
	}

	seen := make(map[string]struct{}, len(raw))
	dirs := make([]string, 0, len(raw))
	for _, dir := range raw {
		if dir == "" {
			continue
		}
		if _, dup := seen[dir]; dup {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	return dirs
}

func (mp *MultiPathBackend) Name() string {
	return BackendMultiPath
}

func (mp *MultiPathBackend) Add(ctx context.Context, entry *models.WaitlistEntry) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	logger := log.GetLoggerInstanceFromContext(ctx, mp.logger)

	var lastErr error
	for _, dir := range mp.candidates {
		err := mp.addAt(dir, entry)
		if err == nil {
			logger.Info("Waitlist entry written via path scan", "dir", dir)
			return nil
		}
		if IsDuplicate(err) {
			// The candidate that answered owns the duplicate verdict; the
			// chain's policy decides what it means.
			return err
		}

		logger.Warn("Waitlist path candidate not writable", "dir", dir, "error", err)
		lastErr = err
	}

	return apperrors.NewDatabaseError("no writable waitlist path available", lastErr)
}

func (mp *MultiPathBackend) addAt(dir string, entry *models.WaitlistEntry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.NewDatabaseError("unable to create candidate directory", err)
	}

	path := filepath.Join(dir, waitlistFileName)

	doc, err := readDocument(path)
	if err != nil {
		return err
	}

	if doc.Contains(entry.Email) {
		return apperrors.NewConflictError(DuplicateEmailMessage, nil)
	}

	doc.Append(entry.Email, time.Now().UTC())

	return writeDocument(path, doc)
}

// Emails reads from the first candidate that holds a waitlist document.
// Candidates with no document yet are skipped rather than initialized.
func (mp *MultiPathBackend) Emails(ctx context.Context) ([]string, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	doc, err := mp.readFirst()
	if err != nil {
		return nil, err
	}

	return doc.Emails, nil
}

func (mp *MultiPathBackend) Count(ctx context.Context) (int, error) {
	emails, err := mp.Emails(ctx)
	if err != nil {
		return 0, err
	}

	return len(emails), nil
}

func (mp *MultiPathBackend) LastUpdated(ctx context.Context) (time.Time, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	doc, err := mp.readFirst()
	if err != nil {
		return time.Time{}, err
	}

	return doc.LastUpdated, nil
}

func (mp *MultiPathBackend) readFirst() (*models.WaitlistDocument, error) {
	for _, dir := range mp.candidates {
		path := filepath.Join(dir, waitlistFileName)

		if _, err := os.Stat(path); err != nil {
			continue
		}

		doc, err := readDocument(path)
		if err != nil {
			continue
		}

		return doc, nil
	}

	return models.NewWaitlistDocument(), nil
}
