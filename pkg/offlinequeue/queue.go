// Package offlinequeue is the last-resort persistence for batches that
// exhausted their upload retries. Entries live in an embedded LevelDB-backed
// queue on disk and are replayed opportunistically until they succeed or age
// out.
package offlinequeue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/beeker1121/goque"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

// DeliverFunc re-sends one persisted batch. It must apply the same
// retry/backoff rules as the live upload path.
type DeliverFunc func(ctx context.Context, batch datamodel.Batch) error

type Queue struct {
	q                 *goque.Queue
	maxEntries        uint64
	maxReplayAttempts int
	maxAge            time.Duration
	log               *zap.SugaredLogger

	// mu serializes enqueue/replay so eviction decisions see a stable length.
	mu sync.Mutex
}

// Open opens (or creates) the persistent queue in the configured directory.
func Open(cfg *config.Config, log *zap.SugaredLogger) (*Queue, error) {
	if log == nil {
		log = zap.S()
	}
	q, err := goque.OpenQueue(cfg.OfflineQueueDir)
	if err != nil {
		return nil, err
	}
	return &Queue{
		q:                 q,
		maxEntries:        uint64(cfg.OfflineQueueMaxEntries),
		maxReplayAttempts: cfg.OfflineMaxReplayAttempts,
		maxAge:            cfg.OfflineMaxAge,
		log:               log,
	}, nil
}

// Enqueue persists a batch that could not be delivered. When the queue is at
// capacity the oldest entries are evicted first; the data loss is logged.
func (o *Queue) Enqueue(batch datamodel.Batch) error {
	entry := datamodel.OfflineEntry{
		Batch:     batch,
		CreatedAt: time.Now().UTC(),
		Attempts:  0,
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enqueueLocked(entry)
}

func (o *Queue) enqueueLocked(entry datamodel.OfflineEntry) error {
	for o.q.Length() >= o.maxEntries {
		evicted, err := o.q.Dequeue()
		if err != nil {
			return err
		}
		o.log.Warnw("Offline queue at capacity, evicting oldest batch",
			"capacity", o.maxEntries, "evictedBytes", len(evicted.Value))
		offlineEvicted.Inc()
	}

	bytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if _, err = o.q.Enqueue(bytes); err != nil {
		return err
	}
	offlineEnqueued.Inc()
	o.log.Infow("Batch queued for offline replay",
		"executions", len(entry.Batch), "queueLength", o.q.Length())
	return nil
}

// ReplayPending attempts delivery of queued batches in order. A failed
// delivery re-queues the entry with its attempt count bumped and ends the
// round; the network is most likely still down. Entries that exceeded the
// replay-attempt or age limit are evicted. Returns the number of batches
// delivered.
func (o *Queue) ReplayPending(ctx context.Context, deliver DeliverFunc) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	replayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}

		item, err := o.q.Dequeue()
		if errors.Is(err, goque.ErrEmpty) {
			return replayed, nil
		}
		if err != nil {
			return replayed, err
		}

		var entry datamodel.OfflineEntry
		if err = json.Unmarshal(item.Value, &entry); err != nil {
			o.log.Errorw("Evicting undecodable offline entry", "error", err)
			offlineEvicted.Inc()
			continue
		}

		if entry.Attempts >= o.maxReplayAttempts {
			o.log.Warnw("Evicting offline batch after too many replay attempts",
				"attempts", entry.Attempts, "executions", len(entry.Batch))
			offlineEvicted.Inc()
			continue
		}
		if time.Since(entry.CreatedAt) > o.maxAge {
			o.log.Warnw("Evicting expired offline batch",
				"createdAt", entry.CreatedAt, "executions", len(entry.Batch))
			offlineEvicted.Inc()
			continue
		}

		if err = deliver(ctx, entry.Batch); err != nil {
			entry.Attempts++
			if reqErr := o.enqueueLocked(entry); reqErr != nil {
				o.log.Errorw("Failed to re-queue offline batch, data lost", "error", reqErr)
			}
			return replayed, nil
		}
		offlineReplayed.Inc()
		replayed++
	}
}

// Length returns the number of pending entries.
func (o *Queue) Length() uint64 {
	return o.q.Length()
}

// Close releases the underlying storage.
func (o *Queue) Close() error {
	return o.q.Close()
}
