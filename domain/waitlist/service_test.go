package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/internal/store"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestWaitlistService_Join(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := NewMockStore(ctrl)
	logger := log.NewLoggerWithJSONOutput()
	service := NewWaitlistService(logger, mockStore)

	t.Run("successful signup", func(t *testing.T) {
		req := &JoinWaitlistRequest{Email: "test@example.com"}

		mockStore.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			Return(&store.Receipt{Backend: store.BackendFile}, nil)

		result, err := service.Join(context.Background(), req, models.WaitlistSourceAPI)

		assert.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, "test@example.com", result.Email)
		assert.Equal(t, store.BackendFile, result.Backend)
	})

	t.Run("email is normalized before the store sees it", func(t *testing.T) {
		req := &JoinWaitlistRequest{Email: "  Mixed.Case@Example.COM "}

		mockStore.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*store.Receipt, error) {
				assert.Equal(t, "mixed.case@example.com", entry.Email)
				return &store.Receipt{Backend: store.BackendFile}, nil
			})

		result, err := service.Join(context.Background(), req, models.WaitlistSourceAPI)

		assert.NoError(t, err)
		assert.Equal(t, "mixed.case@example.com", result.Email)
	})

	t.Run("default source applied when request has none", func(t *testing.T) {
		req := &JoinWaitlistRequest{Email: "tagged@example.com"}

		mockStore.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (*store.Receipt, error) {
				assert.Equal(t, models.WaitlistSourceLegacyAPI, entry.Source)
				return &store.Receipt{Backend: store.BackendFile}, nil
			})

		_, err := service.Join(context.Background(), req, models.WaitlistSourceLegacyAPI)
		assert.NoError(t, err)
	})

	t.Run("malformed email rejected before any backend is touched", func(t *testing.T) {
		for _, email := range []string{"", "no-at-sign", "missing@dot", "spaces in@local.part"} {
			result, err := service.Join(context.Background(), &JoinWaitlistRequest{Email: email}, models.WaitlistSourceAPI)

			assert.Error(t, err, "email %q should be rejected", email)
			assert.Nil(t, result)
			assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err))
		}
	})

	t.Run("duplicate rejection passes through", func(t *testing.T) {
		req := &JoinWaitlistRequest{Email: "repeat@example.com"}

		mockStore.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.NewConflictError(store.DuplicateEmailMessage, nil))

		result, err := service.Join(context.Background(), req, models.WaitlistSourceAPI)

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, store.IsDuplicate(err))
		assert.Equal(t, store.DuplicateEmailMessage, apperrors.GetHumanReadableMessage(err))
	})

	t.Run("storage failure passes through", func(t *testing.T) {
		req := &JoinWaitlistRequest{Email: "unlucky@example.com"}

		mockStore.EXPECT().
			Add(gomock.Any(), gomock.Any()).
			Return(nil, apperrors.NewStorageUnavailableError("We could not save your signup right now, please try again later", nil))

		result, err := service.Join(context.Background(), req, models.WaitlistSourceAPI)

		assert.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("nil request", func(t *testing.T) {
		result, err := service.Join(context.Background(), nil, models.WaitlistSourceAPI)

		assert.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestWaitlistService_Snapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := NewMockStore(ctrl)
	logger := log.NewLoggerWithJSONOutput()
	service := NewWaitlistService(logger, mockStore)

	t.Run("snapshot is mapped verbatim", func(t *testing.T) {
		updated := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

		mockStore.EXPECT().
			Snapshot(gomock.Any()).
			Return(&store.Snapshot{
				Emails:      []string{"a@b.com", "c@d.com"},
				Count:       2,
				LastUpdated: updated,
			}, nil)

		result, err := service.Snapshot(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, 2, result.Count)
		assert.Equal(t, []string{"a@b.com", "c@d.com"}, result.Emails)
		assert.Equal(t, "2026-08-25T12:00:00Z", result.LastUpdated)
	})

	t.Run("zero lastUpdated renders empty", func(t *testing.T) {
		mockStore.EXPECT().
			Snapshot(gomock.Any()).
			Return(&store.Snapshot{Emails: []string{}}, nil)

		result, err := service.Snapshot(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, "", result.LastUpdated)
		assert.Equal(t, 0, result.Count)
	})
}
