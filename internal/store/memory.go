package store

import (
	"context"
	"sync"
	"time"

	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

// MemoryBackend is the last-resort store: an ordered in-process list plus a
// membership set, guarded by a mutex. It is constructed explicitly and passed
// down rather than living in package state, so tests can substitute their own
// instance. Contents are lost on restart.
type MemoryBackend struct {
	mu          sync.Mutex
	emails      []string
	seen        map[string]struct{}
	lastUpdated time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		emails: []string{},
		seen:   make(map[string]struct{}),
	}
}

func (mb *MemoryBackend) Name() string {
	return BackendMemory
}

func (mb *MemoryBackend) Add(ctx context.Context, entry *models.WaitlistEntry) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if _, exists := mb.seen[entry.Email]; exists {
		return apperrors.NewConflictError(DuplicateEmailMessage, nil)
	}

	mb.emails = append(mb.emails, entry.Email)
	mb.seen[entry.Email] = struct{}{}
	mb.lastUpdated = time.Now().UTC()

	return nil
}

func (mb *MemoryBackend) Emails(ctx context.Context) ([]string, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	emails := make([]string, len(mb.emails))
	copy(emails, mb.emails)

	return emails, nil
}

func (mb *MemoryBackend) Count(ctx context.Context) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return len(mb.emails), nil
}

func (mb *MemoryBackend) LastUpdated(ctx context.Context) (time.Time, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.lastUpdated, nil
}
