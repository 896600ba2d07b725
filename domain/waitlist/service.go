package waitlist

import (
	"context"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
)

type WaitlistService interface {
	// Join records a signup, degrading through the storage fallback chain.
	Join(ctx context.Context, req *JoinWaitlistRequest, defaultSource string) (*JoinWaitlistResponse, error)

	// Snapshot returns the canonical backend's full email list and count.
	Snapshot(ctx context.Context) (*WaitlistSnapshotResponse, error)
}

type waitlistService struct {
	logger *log.Logger
	store  store.Store
}

func NewWaitlistService(logger *log.Logger, s store.Store) WaitlistService {
	return &waitlistService{logger: logger, store: s}
}

func (s *waitlistService) Join(ctx context.Context, req *JoinWaitlistRequest, defaultSource string) (*JoinWaitlistResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("Join received empty request")
		return nil, apperrors.NewInvalidRequestError("request cannot be nil", nil)
	}

	email := models.NormalizeEmail(req.Email)
	if !store.ValidateEmail(email) {
		logger.Warn("Rejected malformed signup email")
		return nil, apperrors.NewInvalidRequestError("Please provide a valid email address", nil)
	}

	entry := ToWaitlistEntryModel(req, defaultSource)

	receipt, err := s.store.Add(ctx, entry)
	if err != nil {
		if store.IsDuplicate(err) {
			logger.Info("Duplicate signup rejected", "source", entry.Source)
		} else {
			logger.Error("Failed to record signup", "error", err)
		}
		return nil, err
	}

	return &JoinWaitlistResponse{
		Email:   entry.Email,
		Backend: receipt.Backend,
	}, nil
}

func (s *waitlistService) Snapshot(ctx context.Context) (*WaitlistSnapshotResponse, error) {
	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	snapshot, err := s.store.Snapshot(ctx)
	if err != nil {
		logger.Error("Failed to read waitlist snapshot", "error", err)
		return nil, err
	}

	response := ToWaitlistSnapshotResponse(snapshot)
	return &response, nil
}
