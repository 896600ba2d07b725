package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/pkg/constants"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

const (
	waitlistFileName   = "waitlist.json"
	signupLogFileName  = "waitlist.log"
	deadLetterFileName = "waitlist-deadletter.log"
)

// FileBackend is the canonical store: a single JSON document holding the full
// email list, re-read on every operation, plus a human-readable append-only
// signup log beside it. A process-local mutex serializes read-modify-write;
// concurrent processes sharing the file remain last-writer-wins.
type FileBackend struct {
	path    string
	logPath string
	logger  *log.Logger
	mu      sync.Mutex
}

func NewFileBackend(dataDir string, logger *log.Logger) *FileBackend {
	return &FileBackend{
		path:    filepath.Join(dataDir, waitlistFileName),
		logPath: filepath.Join(dataDir, signupLogFileName),
		logger:  logger,
	}
}

func (fb *FileBackend) Name() string {
	return BackendFile
}

func (fb *FileBackend) Add(ctx context.Context, entry *models.WaitlistEntry) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(fb.path), 0o755); err != nil {
		return apperrors.NewDatabaseError("unable to prepare waitlist data directory", err)
	}

	doc, err := readDocument(fb.path)
	if err != nil {
		return err
	}

	if doc.Contains(entry.Email) {
		return apperrors.NewConflictError(DuplicateEmailMessage, nil)
	}

	doc.Append(entry.Email, time.Now().UTC())

	if err := writeDocument(fb.path, doc); err != nil {
		return err
	}

	fb.mirrorToSignupLog(ctx, entry)

	return nil
}

func (fb *FileBackend) Emails(ctx context.Context) ([]string, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	doc, err := readDocument(fb.path)
	if err != nil {
		return nil, err
	}

	return doc.Emails, nil
}

func (fb *FileBackend) Count(ctx context.Context) (int, error) {
	emails, err := fb.Emails(ctx)
	if err != nil {
		return 0, err
	}

	return len(emails), nil
}

func (fb *FileBackend) LastUpdated(ctx context.Context) (time.Time, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	doc, err := readDocument(fb.path)
	if err != nil {
		return time.Time{}, err
	}

	return doc.LastUpdated, nil
}

// mirrorToSignupLog appends one line per accepted signup. The mirror is
// best-effort: a failure here never fails the write that already landed.
func (fb *FileBackend) mirrorToSignupLog(ctx context.Context, entry *models.WaitlistEntry) {
	f, err := os.OpenFile(fb.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		log.GetLoggerInstanceFromContext(ctx, fb.logger).Warn("signup log mirror unavailable", "path", fb.logPath, "error", err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf("%s | %s | source=%s\n", time.Now().UTC().Format(constants.RFC3339DateTimeFormat), entry.Email, entry.Source)

	if _, err := f.WriteString(line); err != nil {
		log.GetLoggerInstanceFromContext(ctx, fb.logger).Warn("failed to append to signup log", "path", fb.logPath, "error", err)
	}
}

// readDocument loads the JSON envelope at path, returning a fresh empty
// document when the file does not exist yet. A present-but-unparseable file
// is an error, not a silent reinitialization.
func readDocument(path string) (*models.WaitlistDocument, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.NewWaitlistDocument(), nil
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to read waitlist document", err)
	}

	doc := models.NewWaitlistDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, apperrors.NewDatabaseError("waitlist document is corrupted", err)
	}

	if doc.Emails == nil {
		doc.Emails = []string{}
	}

	return doc, nil
}

func writeDocument(path string, doc *models.WaitlistDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return apperrors.NewInternalServerError("unable to encode waitlist document", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewDatabaseError("unable to write waitlist document", err)
	}

	return nil
}
