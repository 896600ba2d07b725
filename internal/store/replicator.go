package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akeren/snipit-waitlist/internal/log"
	"github.com/akeren/snipit-waitlist/internal/models"
	"github.com/akeren/snipit-waitlist/pkg/circuitbreaker"
	"github.com/akeren/snipit-waitlist/pkg/constants"
)

// ReplicatorConfig sizes the queue and worker pool.
type ReplicatorConfig struct {
	QueueSize int
	Workers   int
}

func DefaultReplicatorConfig() *ReplicatorConfig {
	return &ReplicatorConfig{
		QueueSize: constants.DefaultReplicationQueueSize,
		Workers:   constants.DefaultReplicationWorkers,
	}
}

// ReplicatorStats are cumulative counters for the monitoring surface.
type ReplicatorStats struct {
	Enqueued     uint64 `json:"enqueued"`
	Replicated   uint64 `json:"replicated"`
	DeadLettered uint64 `json:"dead_lettered"`
	Dropped      uint64 `json:"dropped"`
	CircuitState string `json:"circuit_state"`
}

// deadLetterRecord is one JSON line in the dead-letter log.
type deadLetterRecord struct {
	Email     string `json:"email"`
	Source    string `json:"source"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Replicator copies accepted signups to the redundant remote backend off the
// request path: a buffered queue drained by a fixed worker pool, a circuit
// breaker so a dead target fails fast, and an append-only dead-letter log for
// everything that could not be delivered. Duplicates at the target count as
// success; the entry is already there.
type Replicator struct {
	target         Backend
	queue          chan *models.WaitlistEntry
	workers        int
	breaker        circuitbreaker.CircuitBreaker
	deadLetterPath string
	logger         *log.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once

	deadLetterMu sync.Mutex

	enqueued     atomic.Uint64
	replicated   atomic.Uint64
	deadLettered atomic.Uint64
	dropped      atomic.Uint64
}

func NewReplicator(target Backend, dataDir string, cfg *ReplicatorConfig, logger *log.Logger) *Replicator {
	if cfg == nil {
		cfg = DefaultReplicatorConfig()
	}

	// Trip fast and probe again before the next delivery deadline expires.
	breakerConfig := &circuitbreaker.Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}

	return &Replicator{
		target:         target,
		queue:          make(chan *models.WaitlistEntry, cfg.QueueSize),
		workers:        cfg.Workers,
		breaker:        circuitbreaker.NewCircuitBreaker(breakerConfig),
		deadLetterPath: filepath.Join(dataDir, deadLetterFileName),
		logger:         logger,
	}
}

// Start launches the worker pool. Call exactly once, before Submit.
func (r *Replicator) Start() {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.logger.Info("Waitlist replicator started", "workers", r.workers, "queue_size", cap(r.queue), "target", r.target.Name())
}

// Submit hands an accepted signup to the worker pool. It never blocks: when
// the queue is full the task is dead-lettered immediately and Submit reports
// false.
func (r *Replicator) Submit(entry *models.WaitlistEntry) bool {
	select {
	case r.queue <- entry:
		r.enqueued.Add(1)
		return true
	default:
		r.dropped.Add(1)
		r.deadLetter(entry, "replication queue full")
		return false
	}
}

// Close stops accepting work and drains the queue, blocking until every
// in-flight task has been replicated or dead-lettered.
func (r *Replicator) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()

	r.logger.Info("Waitlist replicator drained", "replicated", r.replicated.Load(), "dead_lettered", r.deadLettered.Load())
}

func (r *Replicator) Stats() ReplicatorStats {
	return ReplicatorStats{
		Enqueued:     r.enqueued.Load(),
		Replicated:   r.replicated.Load(),
		DeadLettered: r.deadLettered.Load(),
		Dropped:      r.dropped.Load(),
		CircuitState: r.breaker.GetMetrics().State.String(),
	}
}

func (r *Replicator) worker() {
	defer r.wg.Done()

	for entry := range r.queue {
		r.replicate(entry)
	}
}

func (r *Replicator) replicate(entry *models.WaitlistEntry) {
	// Replication outlives the originating request, so it runs under its own
	// deadline rather than the request context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := r.breaker.Call(func() error {
		addErr := r.target.Add(ctx, entry)
		if IsDuplicate(addErr) {
			return nil
		}
		return addErr
	})
	if err != nil {
		r.deadLetter(entry, err.Error())
		return
	}

	r.replicated.Add(1)
}

// deadLetter appends one JSON line describing the failed task. The log is the
// operator's recovery channel; losing a record here is logged loudly but does
// not propagate.
func (r *Replicator) deadLetter(entry *models.WaitlistEntry, reason string) {
	r.deadLettered.Add(1)
	r.logger.Error("Waitlist replication dead-lettered", "email", entry.Email, "reason", reason, "path", r.deadLetterPath)

	record := deadLetterRecord{
		Email:     entry.Email,
		Source:    entry.Source,
		Error:     reason,
		Timestamp: time.Now().UTC().Format(constants.RFC3339DateTimeFormat),
	}

	line, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("Failed to encode dead-letter record", "error", err)
		return
	}

	r.deadLetterMu.Lock()
	defer r.deadLetterMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.deadLetterPath), 0o755); err != nil {
		r.logger.Error("Dead-letter directory unavailable", "error", err)
		return
	}

	f, err := os.OpenFile(r.deadLetterPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Error("Dead-letter log unavailable", "error", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		r.logger.Error("Failed to append dead-letter record", "error", err)
	}
}
