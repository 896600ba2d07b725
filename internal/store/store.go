// Package store implements the waitlist persistence layer: a set of
// interchangeable storage backends, a fallback chain that writes through them
// in priority order, and a background replicator for the redundant remote
// copy.
package store

import (
	"context"
	"time"

	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

// Backend names, as accepted by the WAITLIST_BACKENDS priority list.
const (
	BackendFile      = "file"
	BackendMultiPath = "multipath"
	BackendMemory    = "memory"
	BackendRemote    = "remote"
)

// DuplicateEmailMessage is the user-facing rejection for repeat signups.
const DuplicateEmailMessage = "Email already registered"

// Backend is a single persistence strategy for waitlist signups. Add returns
// a Conflict-typed AppError when the email is already present in that
// backend's own data; any other error means the backend could not take the
// write and the caller may try the next one.
type Backend interface {
	Name() string
	Add(ctx context.Context, entry *models.WaitlistEntry) error
	Emails(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	LastUpdated(ctx context.Context) (time.Time, error)
}

// Receipt reports where a write landed.
type Receipt struct {
	Backend string
}

// Snapshot is the read-path aggregate from the canonical backend.
type Snapshot struct {
	Emails      []string  `json:"emails"`
	Count       int       `json:"count"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Store is the surface the waitlist service consumes: degrading writes plus
// canonical reads.
type Store interface {
	Add(ctx context.Context, entry *models.WaitlistEntry) (*Receipt, error)
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// IsDuplicate reports whether err is a duplicate-signup rejection.
func IsDuplicate(err error) bool {
	return apperrors.GetErrorType(err) == apperrors.ErrorTypeConflict
}
