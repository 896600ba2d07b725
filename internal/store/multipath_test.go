package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)
	t.Setenv("HOME", tmp)

	dirs := candidateDirs("data")

	assert.Equal(t, "data", dirs[0], "configured data dir scans first")
	assert.Equal(t, ".", dirs[len(dirs)-1], "working directory is the last resort")
	assert.Contains(t, dirs, tmp)

	// Duplicates collapse: TMPDIR and HOME point at the same path above.
	seen := make(map[string]int)
	for _, dir := range dirs {
		seen[dir]++
	}
	for dir, n := range seen {
		assert.Equal(t, 1, n, "dir %q appears more than once", dir)
	}
}

func TestMultiPathBackend_WritesToFirstCandidate(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "primary")
	backend := NewMultiPathBackend(dataDir, log.NewLoggerWithJSONOutput())
	ctx := context.Background()

	require.NoError(t, backend.Add(ctx, newTestEntry("scan@example.com")))

	_, err := os.Stat(filepath.Join(dataDir, waitlistFileName))
	assert.NoError(t, err, "document lands in the first candidate when it is writable")

	emails, err := backend.Emails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"scan@example.com"}, emails)
}

func TestMultiPathBackend_FallsThroughUnwritableCandidate(t *testing.T) {
	root := t.TempDir()
	fallback := filepath.Join(root, "fallback")
	require.NoError(t, os.MkdirAll(fallback, 0o755))
	t.Setenv("TMPDIR", fallback)
	t.Setenv("HOME", fallback)

	// A regular file where the data dir should be makes MkdirAll fail.
	blocked := filepath.Join(root, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte{}, 0o644))

	backend := NewMultiPathBackend(blocked, log.NewLoggerWithJSONOutput())
	ctx := context.Background()

	require.NoError(t, backend.Add(ctx, newTestEntry("resilient@example.com")))

	_, err := os.Stat(filepath.Join(fallback, waitlistFileName))
	assert.NoError(t, err, "write degrades to the next candidate")

	emails, err := backend.Emails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"resilient@example.com"}, emails)
}

func TestMultiPathBackend_DuplicateStopsTheScan(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "primary")
	backend := NewMultiPathBackend(dataDir, log.NewLoggerWithJSONOutput())
	ctx := context.Background()

	require.NoError(t, backend.Add(ctx, newTestEntry("repeat@example.com")))

	err := backend.Add(ctx, newTestEntry("repeat@example.com"))
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMultiPathBackend_ReadWithNoDocuments(t *testing.T) {
	empty := t.TempDir()
	t.Setenv("TMPDIR", filepath.Join(empty, "tmp"))
	t.Setenv("HOME", filepath.Join(empty, "home"))

	backend := NewMultiPathBackend(filepath.Join(empty, "data"), log.NewLoggerWithJSONOutput())
	ctx := context.Background()

	emails, err := backend.Emails(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)

	lastUpdated, err := backend.LastUpdated(ctx)
	require.NoError(t, err)
	assert.True(t, lastUpdated.IsZero())
}
