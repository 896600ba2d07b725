package store

import (
	"context"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

// DuplicatePolicy decides what a duplicate report from a non-canonical
// backend means to the chain.
type DuplicatePolicy string

const (
	// PolicyStrict trusts the first duplicate signal from any backend and
	// rejects immediately. This favors precision: never double-insert, at the
	// cost of occasionally refusing a legitimate signup because a transient
	// backend held a stale copy.
	PolicyStrict DuplicatePolicy = "strict"

	// PolicyReconciled verifies a non-canonical duplicate signal against the
	// canonical backend: present there means reject, absent means the signal
	// was stale and the chain keeps going.
	PolicyReconciled DuplicatePolicy = "reconciled"
)

// ParseDuplicatePolicy maps a configuration value to a policy, defaulting to
// strict for empty or unknown input.
func ParseDuplicatePolicy(value string) DuplicatePolicy {
	if DuplicatePolicy(value) == PolicyReconciled {
		return PolicyReconciled
	}
	return PolicyStrict
}

const unavailableMessage = "We could not save your signup right now, please try again later"

// ReplicationSink receives accepted writes for background replication.
// Submit must never block the request path.
type ReplicationSink interface {
	Submit(entry *models.WaitlistEntry) bool
}

// FallbackChain writes through an ordered priority list of backends, stopping
// at the first success, and reads only from the canonical (first) backend.
// The deployment target's filesystem writability is unpredictable, so a
// failed backend degrades to the next, less durable one instead of failing
// the request.
type FallbackChain struct {
	backends   []Backend
	policy     DuplicatePolicy
	replicator ReplicationSink
	logger     *log.Logger
}

func NewFallbackChain(backends []Backend, policy DuplicatePolicy, logger *log.Logger) *FallbackChain {
	return &FallbackChain{
		backends: backends,
		policy:   policy,
		logger:   logger,
	}
}

// AttachReplicator wires the background replication hand-off. Call before
// serving traffic; the chain does not guard this field.
func (fc *FallbackChain) AttachReplicator(replicator ReplicationSink) {
	fc.replicator = replicator
}

func (fc *FallbackChain) canonical() Backend {
	return fc.backends[0]
}

// Add normalizes and validates the entry's email, then tries each backend in
// priority order. The first success is terminal, as is any duplicate verdict
// the configured policy upholds.
func (fc *FallbackChain) Add(ctx context.Context, entry *models.WaitlistEntry) (*Receipt, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, fc.logger)

	entry.Email = models.NormalizeEmail(entry.Email)

	if !ValidateEmail(entry.Email) {
		return nil, apperrors.NewInvalidRequestError("Please provide a valid email address", nil)
	}

	var lastErr error
	for i, backend := range fc.backends {
		err := backend.Add(ctx, entry)
		if err == nil {
			logger.Info("Waitlist signup accepted", "backend", backend.Name(), "source", entry.Source)

			if fc.replicator != nil {
				fc.replicator.Submit(entry)
			}

			return &Receipt{Backend: backend.Name()}, nil
		}

		if IsDuplicate(err) {
			if i == 0 || fc.policy == PolicyStrict {
				return nil, err
			}

			present, verifyErr := fc.canonicalContains(ctx, entry.Email)
			if verifyErr != nil {
				// Canonical unreachable; the duplicate signal stands.
				logger.Warn("Duplicate verification against canonical backend failed", "backend", backend.Name(), "error", verifyErr)
				return nil, err
			}
			if present {
				return nil, err
			}

			logger.Warn("Stale duplicate signal ignored", "backend", backend.Name())
			lastErr = err
			continue
		}

		logger.Warn("Waitlist backend unavailable, falling back", "backend", backend.Name(), "error", err)
		lastErr = err
	}

	logger.Error("All waitlist backends exhausted", "error", lastErr)

	return nil, apperrors.NewStorageUnavailableError(unavailableMessage, lastErr)
}

func (fc *FallbackChain) canonicalContains(ctx context.Context, email string) (bool, error) {
	emails, err := fc.canonical().Emails(ctx)
	if err != nil {
		return false, err
	}

	for _, existing := range emails {
		if existing == email {
			return true, nil
		}
	}

	return false, nil
}

// Snapshot reads the canonical backend verbatim. A read failure degrades to
// an empty snapshot with a warning, never an error to the caller.
func (fc *FallbackChain) Snapshot(ctx context.Context) (*Snapshot, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, fc.logger)

	emails, err := fc.canonical().Emails(ctx)
	if err != nil {
		logger.Warn("Canonical waitlist read failed, returning empty snapshot", "backend", fc.canonical().Name(), "error", err)
		return &Snapshot{Emails: []string{}}, nil
	}

	lastUpdated, err := fc.canonical().LastUpdated(ctx)
	if err != nil {
		logger.Warn("Canonical lastUpdated read failed", "backend", fc.canonical().Name(), "error", err)
	}

	return &Snapshot{
		Emails:      emails,
		Count:       len(emails),
		LastUpdated: lastUpdated,
	}, nil
}
