package store

import (
	"context"
	"errors"
	"time"

	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
	"github.com/akeren/snipit-waitlist/pkg/retry"
	"gorm.io/gorm"
)

// RemoteBackend persists signups to the structured store over gorm. It is the
// replication target rather than a default member of the write chain, but it
// implements the full Backend surface and may be listed in the chain by
// configuration. Each write runs a duplicate pre-check and the insert inside
// one transaction, with the unique index backing up the pre-check against
// concurrent writers; the whole attempt is wrapped in bounded exponential
// backoff for transient network failures.
type RemoteBackend struct {
	db      *gorm.DB
	retrier retry.RetryPolicy
}

func NewRemoteBackend(db *gorm.DB) *RemoteBackend {
	return &RemoteBackend{
		db: db,
		retrier: retry.NewExponentialBackoff(&retry.Config{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			MaxDelay:    5 * time.Second,
			Multiplier:  2.0,
		}),
	}
}

func (rb *RemoteBackend) Name() string {
	return BackendRemote
}

func (rb *RemoteBackend) Add(ctx context.Context, entry *models.WaitlistEntry) error {
	return rb.retrier.Execute(func() error {
		return rb.insert(ctx, entry)
	})
}

func (rb *RemoteBackend) insert(ctx context.Context, entry *models.WaitlistEntry) error {
	return rb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.WaitlistEntry
		err := tx.Where("email = ?", entry.Email).First(&existing).Error
		if err == nil {
			return apperrors.NewConflictError(DuplicateEmailMessage, nil)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewDatabaseError("unable to check for existing signup", err)
		}

		if err := tx.Create(entry).Error; err != nil {
			if isDuplicateKey(err) {
				// Concurrent writer beat the pre-check; the unique index is
				// authoritative.
				return apperrors.NewConflictError(DuplicateEmailMessage, err)
			}
			return apperrors.NewDatabaseError("unable to create waitlist entry", err)
		}

		return nil
	})
}

func (rb *RemoteBackend) Emails(ctx context.Context) ([]string, error) {
	var emails []string

	err := rb.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Order("created_at ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, apperrors.NewDatabaseError("unable to fetch waitlist emails", err)
	}

	if emails == nil {
		emails = []string{}
	}

	return emails, nil
}

func (rb *RemoteBackend) Count(ctx context.Context) (int, error) {
	var count int64

	err := rb.db.WithContext(ctx).
		Model(&models.WaitlistEntry{}).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.NewDatabaseError("unable to count waitlist entries", err)
	}

	return int(count), nil
}

func (rb *RemoteBackend) LastUpdated(ctx context.Context) (time.Time, error) {
	var latest models.WaitlistEntry

	err := rb.db.WithContext(ctx).
		Order("created_at DESC").
		First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, apperrors.NewDatabaseError("unable to read latest signup", err)
	}

	return latest.CreatedAt, nil
}

func isDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || apperrors.IsDuplicateKeyError(err)
}
