package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/store"
	"github.com/akeren/snipit-waitlist/pkg/constants"
	"gorm.io/gorm"
)

// WaitlistConfig holds the persistence chain settings.
type WaitlistConfig struct {
	DataDir              string
	Backends             []string
	DuplicatePolicy      store.DuplicatePolicy
	AdminAPIKey          string
	ReplicationQueueSize int
	ReplicationWorkers   int
}

func NewWaitlistConfig() *WaitlistConfig {
	config := &WaitlistConfig{
		DataDir:              sanitizeEnv(GetValueFromEnvironmentVariable("WAITLIST_DATA_DIR", "")),
		DuplicatePolicy:      store.ParseDuplicatePolicy(sanitizeEnv(GetValueFromEnvironmentVariable("WAITLIST_DUPLICATE_POLICY", ""))),
		AdminAPIKey:          sanitizeEnv(GetValueFromEnvironmentVariable("ADMIN_API_KEY", "")),
		ReplicationQueueSize: constants.DefaultReplicationQueueSize,
		ReplicationWorkers:   constants.DefaultReplicationWorkers,
	}

	// Empty values fall back to defaults; an env var set to "" is as good as
	// unset here.
	if config.DataDir == "" {
		config.DataDir = "data"
	}

	backendsRaw := sanitizeEnv(GetValueFromEnvironmentVariable("WAITLIST_BACKENDS", ""))
	for _, name := range strings.Split(backendsRaw, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			config.Backends = append(config.Backends, name)
		}
	}

	if len(config.Backends) == 0 {
		config.Backends = []string{store.BackendFile, store.BackendMultiPath, store.BackendMemory}
	}

	if sizeStr := GetValueFromEnvironmentVariable("WAITLIST_REPLICATION_QUEUE_SIZE", ""); sizeStr != "" {
		if parsed, err := strconv.Atoi(sizeStr); err == nil && parsed > 0 {
			config.ReplicationQueueSize = parsed
		}
	}

	if workersStr := GetValueFromEnvironmentVariable("WAITLIST_REPLICATION_WORKERS", ""); workersStr != "" {
		if parsed, err := strconv.Atoi(workersStr); err == nil && parsed > 0 {
			config.ReplicationWorkers = parsed
		}
	}

	return config
}

// WaitlistStack is the assembled persistence layer: the fallback chain the
// request path writes to, the canonical backend the read path and health
// checks consult, and the background replicator (nil when no database is
// configured).
type WaitlistStack struct {
	Store      *store.FallbackChain
	Canonical  store.Backend
	Replicator *store.Replicator
}

// BuildWaitlistStack constructs the configured backends in priority order and
// wires replication to the remote backend when a database connection exists.
// Listing "remote" as a chain backend requires the database; every other
// backend is local and always constructible.
func (wc *WaitlistConfig) BuildWaitlistStack(logger *log.Logger, db *gorm.DB) (*WaitlistStack, error) {
	if len(wc.Backends) == 0 {
		return nil, fmt.Errorf("no waitlist backends configured")
	}

	storeLogger := logger.WithComponent("store")
	backends := make([]store.Backend, 0, len(wc.Backends))
	remoteInChain := false

	for _, name := range wc.Backends {
		switch name {
		case store.BackendFile:
			backends = append(backends, store.NewFileBackend(wc.DataDir, storeLogger))
		case store.BackendMultiPath:
			backends = append(backends, store.NewMultiPathBackend(wc.DataDir, storeLogger))
		case store.BackendMemory:
			backends = append(backends, store.NewMemoryBackend())
		case store.BackendRemote:
			if db == nil {
				return nil, fmt.Errorf("waitlist backend %q requires a configured database", name)
			}
			backends = append(backends, store.NewRemoteBackend(db))
			remoteInChain = true
		default:
			return nil, fmt.Errorf("unknown waitlist backend %q", name)
		}
	}

	chain := store.NewFallbackChain(backends, wc.DuplicatePolicy, storeLogger)

	stack := &WaitlistStack{
		Store:     chain,
		Canonical: backends[0],
	}

	// The remote backend doubles as the replication target, but replicating to
	// a backend that already sits in the chain would write everything twice.
	if db != nil && !remoteInChain {
		replicator := store.NewReplicator(store.NewRemoteBackend(db), wc.DataDir, &store.ReplicatorConfig{
			QueueSize: wc.ReplicationQueueSize,
			Workers:   wc.ReplicationWorkers,
		}, logger.WithComponent("replicator"))
		replicator.Start()
		chain.AttachReplicator(replicator)
		stack.Replicator = replicator

		logger.Info("Waitlist replication enabled", "target", store.BackendRemote)
	} else if db == nil {
		logger.Info("Database not configured, waitlist replication disabled")
	}

	logger.Info("Waitlist store initialized",
		"backends", strings.Join(wc.Backends, ","),
		"duplicate_policy", string(wc.DuplicatePolicy),
		"data_dir", wc.DataDir,
	)

	return stack, nil
}
