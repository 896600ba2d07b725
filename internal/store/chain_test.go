package store

import (
	"context"
	"testing"
	"time"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	apperrors "github.com/akeren/snipit-waitlist/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend is a scriptable Backend for chain tests.
type stubBackend struct {
	name        string
	addErr      error
	emails      []string
	emailsErr   error
	lastUpdated time.Time
	added       []string
}

func (sb *stubBackend) Name() string { return sb.name }

func (sb *stubBackend) Add(ctx context.Context, entry *models.WaitlistEntry) error {
	if sb.addErr != nil {
		return sb.addErr
	}
	sb.added = append(sb.added, entry.Email)
	return nil
}

func (sb *stubBackend) Emails(ctx context.Context) ([]string, error) {
	if sb.emailsErr != nil {
		return nil, sb.emailsErr
	}
	return sb.emails, nil
}

func (sb *stubBackend) Count(ctx context.Context) (int, error) {
	if sb.emailsErr != nil {
		return 0, sb.emailsErr
	}
	return len(sb.emails), nil
}

func (sb *stubBackend) LastUpdated(ctx context.Context) (time.Time, error) {
	return sb.lastUpdated, nil
}

type stubSink struct {
	submitted []string
}

func (ss *stubSink) Submit(entry *models.WaitlistEntry) bool {
	ss.submitted = append(ss.submitted, entry.Email)
	return true
}

func newChain(policy DuplicatePolicy, backends ...Backend) *FallbackChain {
	return NewFallbackChain(backends, policy, log.NewLoggerWithJSONOutput())
}

func TestParseDuplicatePolicy(t *testing.T) {
	assert.Equal(t, PolicyStrict, ParseDuplicatePolicy(""))
	assert.Equal(t, PolicyStrict, ParseDuplicatePolicy("strict"))
	assert.Equal(t, PolicyStrict, ParseDuplicatePolicy("nonsense"))
	assert.Equal(t, PolicyReconciled, ParseDuplicatePolicy("reconciled"))
}

func TestFallbackChain_WriteLandsOnCanonical(t *testing.T) {
	canonical := &stubBackend{name: BackendFile}
	secondary := &stubBackend{name: BackendMemory}
	chain := newChain(PolicyStrict, canonical, secondary)

	receipt, err := chain.Add(context.Background(), newTestEntry("new@example.com"))

	require.NoError(t, err)
	assert.Equal(t, BackendFile, receipt.Backend)
	assert.Equal(t, []string{"new@example.com"}, canonical.added)
	assert.Empty(t, secondary.added)
}

func TestFallbackChain_FallsThroughFailedBackend(t *testing.T) {
	canonical := &stubBackend{name: BackendFile, addErr: apperrors.NewDatabaseError("disk is read-only", nil)}
	secondary := &stubBackend{name: BackendMemory}
	chain := newChain(PolicyStrict, canonical, secondary)

	receipt, err := chain.Add(context.Background(), newTestEntry("degraded@example.com"))

	require.NoError(t, err)
	assert.Equal(t, BackendMemory, receipt.Backend)
	assert.Equal(t, []string{"degraded@example.com"}, secondary.added)
}

func TestFallbackChain_NormalizesBeforeWriting(t *testing.T) {
	canonical := &stubBackend{name: BackendFile}
	chain := newChain(PolicyStrict, canonical)

	entry := newTestEntry("  Shout@Example.COM ")
	_, err := chain.Add(context.Background(), entry)

	require.NoError(t, err)
	assert.Equal(t, "shout@example.com", entry.Email)
	assert.Equal(t, []string{"shout@example.com"}, canonical.added)
}

func TestFallbackChain_InvalidEmailTouchesNoBackend(t *testing.T) {
	canonical := &stubBackend{name: BackendFile}
	chain := newChain(PolicyStrict, canonical)

	for _, email := range []string{"", "not-an-email", "missing@dot"} {
		receipt, err := chain.Add(context.Background(), newTestEntry(email))

		assert.Nil(t, receipt)
		assert.Equal(t, apperrors.ErrorTypeInvalidRequest, apperrors.GetErrorType(err), "email %q", email)
	}

	assert.Empty(t, canonical.added)
}

func TestFallbackChain_CanonicalDuplicateAlwaysRejects(t *testing.T) {
	for _, policy := range []DuplicatePolicy{PolicyStrict, PolicyReconciled} {
		canonical := &stubBackend{name: BackendFile, addErr: apperrors.NewConflictError(DuplicateEmailMessage, nil)}
		secondary := &stubBackend{name: BackendMemory}
		chain := newChain(policy, canonical, secondary)

		receipt, err := chain.Add(context.Background(), newTestEntry("repeat@example.com"))

		assert.Nil(t, receipt, "policy %s", policy)
		assert.True(t, IsDuplicate(err), "policy %s", policy)
		assert.Empty(t, secondary.added, "policy %s", policy)
	}
}

func TestFallbackChain_StrictTrustsSecondaryDuplicate(t *testing.T) {
	canonical := &stubBackend{name: BackendFile, addErr: apperrors.NewDatabaseError("disk is read-only", nil)}
	secondary := &stubBackend{name: BackendMemory, addErr: apperrors.NewConflictError(DuplicateEmailMessage, nil)}
	tertiary := &stubBackend{name: BackendMultiPath}
	chain := newChain(PolicyStrict, canonical, secondary, tertiary)

	receipt, err := chain.Add(context.Background(), newTestEntry("maybe@example.com"))

	assert.Nil(t, receipt)
	assert.True(t, IsDuplicate(err))
	assert.Empty(t, tertiary.added)
}

func TestFallbackChain_ReconciledIgnoresStaleSecondaryDuplicate(t *testing.T) {
	// Canonical cannot take writes and does not contain the email, so the
	// secondary's duplicate signal is stale and the chain keeps going.
	canonical := &stubBackend{name: BackendFile, addErr: apperrors.NewDatabaseError("disk is read-only", nil), emails: []string{}}
	secondary := &stubBackend{name: BackendMemory, addErr: apperrors.NewConflictError(DuplicateEmailMessage, nil)}
	tertiary := &stubBackend{name: BackendMultiPath}
	chain := newChain(PolicyReconciled, canonical, secondary, tertiary)

	receipt, err := chain.Add(context.Background(), newTestEntry("fresh@example.com"))

	require.NoError(t, err)
	assert.Equal(t, BackendMultiPath, receipt.Backend)
	assert.Equal(t, []string{"fresh@example.com"}, tertiary.added)
}

func TestFallbackChain_ReconciledUpholdsVerifiedDuplicate(t *testing.T) {
	canonical := &stubBackend{name: BackendFile, addErr: apperrors.NewDatabaseError("disk is read-only", nil), emails: []string{"known@example.com"}}
	secondary := &stubBackend{name: BackendMemory, addErr: apperrors.NewConflictError(DuplicateEmailMessage, nil)}
	tertiary := &stubBackend{name: BackendMultiPath}
	chain := newChain(PolicyReconciled, canonical, secondary, tertiary)

	receipt, err := chain.Add(context.Background(), newTestEntry("known@example.com"))

	assert.Nil(t, receipt)
	assert.True(t, IsDuplicate(err))
	assert.Empty(t, tertiary.added)
}

func TestFallbackChain_ReconciledVerificationFailureUpholdsDuplicate(t *testing.T) {
	canonical := &stubBackend{
		name:      BackendFile,
		addErr:    apperrors.NewDatabaseError("disk is read-only", nil),
		emailsErr: apperrors.NewDatabaseError("disk is unreadable too", nil),
	}
	secondary := &stubBackend{name: BackendMemory, addErr: apperrors.NewConflictError(DuplicateEmailMessage, nil)}
	chain := newChain(PolicyReconciled, canonical, secondary)

	receipt, err := chain.Add(context.Background(), newTestEntry("uncertain@example.com"))

	assert.Nil(t, receipt)
	assert.True(t, IsDuplicate(err))
}

func TestFallbackChain_AllBackendsExhausted(t *testing.T) {
	first := &stubBackend{name: BackendFile, addErr: apperrors.NewDatabaseError("disk is read-only", nil)}
	second := &stubBackend{name: BackendMultiPath, addErr: apperrors.NewDatabaseError("no writable path", nil)}
	chain := newChain(PolicyStrict, first, second)

	receipt, err := chain.Add(context.Background(), newTestEntry("nowhere@example.com"))

	assert.Nil(t, receipt)
	assert.Equal(t, apperrors.ErrorTypeStorageUnavailable, apperrors.GetErrorType(err))
}

func TestFallbackChain_SubmitsAcceptedWritesForReplication(t *testing.T) {
	canonical := &stubBackend{name: BackendFile}
	sink := &stubSink{}
	chain := newChain(PolicyStrict, canonical)
	chain.AttachReplicator(sink)

	_, err := chain.Add(context.Background(), newTestEntry("copied@example.com"))
	require.NoError(t, err)
	assert.Equal(t, []string{"copied@example.com"}, sink.submitted)

	// Rejected writes are not replicated.
	canonical.addErr = apperrors.NewConflictError(DuplicateEmailMessage, nil)
	_, err = chain.Add(context.Background(), newTestEntry("copied@example.com"))
	assert.True(t, IsDuplicate(err))
	assert.Len(t, sink.submitted, 1)
}

func TestFallbackChain_SnapshotReadsCanonicalOnly(t *testing.T) {
	updated := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	canonical := &stubBackend{name: BackendFile, emails: []string{"a@example.com", "b@example.com"}, lastUpdated: updated}
	secondary := &stubBackend{name: BackendMemory, emails: []string{"stale@example.com"}}
	chain := newChain(PolicyStrict, canonical, secondary)

	snapshot, err := chain.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, snapshot.Emails)
	assert.Equal(t, 2, snapshot.Count)
	assert.Equal(t, updated, snapshot.LastUpdated)
}

func TestFallbackChain_SnapshotDegradesToEmpty(t *testing.T) {
	canonical := &stubBackend{name: BackendFile, emailsErr: apperrors.NewDatabaseError("disk is unreadable", nil)}
	chain := newChain(PolicyStrict, canonical)

	snapshot, err := chain.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Empty(t, snapshot.Emails)
	assert.Equal(t, 0, snapshot.Count)
	assert.True(t, snapshot.LastUpdated.IsZero())
}
