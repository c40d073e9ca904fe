// Package collector buffers execution records from arbitrarily many
// concurrent callers and extracts them as immutable batches. Record never
// performs I/O; its cost is a sampling draw plus a mutex-guarded append.
package collector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

// UploadFunc delivers one drained batch. It may block on network I/O,
// retries included; the collector only ever calls it off the record path or
// from an explicit Flush.
type UploadFunc func(ctx context.Context, batch datamodel.Batch)

type Collector struct {
	mu     sync.Mutex
	buffer []datamodel.TestExecution

	enabled       bool
	samplingRate  float64
	batchSize     int
	flushInterval time.Duration

	upload UploadFunc
	log    *zap.SugaredLogger

	// sample is the uniform draw in [0,1), injected by tests.
	sample func() float64

	// deliverMu makes drain-plus-upload atomic, so batches reach the upload
	// function in the order their records were buffered even when several
	// threshold triggers race.
	deliverMu sync.Mutex

	quit     chan struct{}
	loopDone sync.WaitGroup
	uploads  sync.WaitGroup
	stopOnce sync.Once
}

// New creates a collector and starts its background flush ticker. The ticker
// drains on the configured cadence regardless of buffer fullness, bounding
// data latency for low-volume suites.
func New(cfg *config.Config, upload UploadFunc, log *zap.SugaredLogger) *Collector {
	if log == nil {
		log = zap.S()
	}
	c := &Collector{
		buffer:        make([]datamodel.TestExecution, 0, cfg.BatchSize),
		enabled:       cfg.Enabled,
		samplingRate:  cfg.SamplingRate,
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		upload:        upload,
		log:           log,
		sample:        rand.Float64,
		quit:          make(chan struct{}),
	}
	c.loopDone.Add(1)
	go c.runFlushLoop()
	return c
}

// Record buffers one execution. It never blocks on network I/O and never
// propagates an error to the caller: malformed records are dropped and
// logged, telemetry must not break the test run.
func (c *Collector) Record(execution *datamodel.TestExecution) {
	if !c.enabled {
		return
	}
	if execution == nil {
		c.log.Warn("Dropping nil execution record")
		executionsDropped.Inc()
		return
	}

	if !(c.sample() < c.samplingRate) {
		executionsSampledOut.Inc()
		return
	}

	if err := execution.Validate(); err != nil {
		c.log.Warnw("Dropping invalid execution record", "error", err)
		executionsDropped.Inc()
		return
	}

	c.mu.Lock()
	select {
	case <-c.quit:
		c.mu.Unlock()
		executionsDropped.Inc()
		return
	default:
	}
	c.buffer = append(c.buffer, *execution)
	full := len(c.buffer) >= c.batchSize
	triggerAsync := full
	if triggerAsync {
		c.uploads.Add(1)
	}
	c.mu.Unlock()

	executionsRecorded.Inc()

	if triggerAsync {
		go func() {
			defer c.uploads.Done()
			c.drainAndUpload(context.Background())
		}()
	}
}

// Drain atomically extracts up to one batch worth of buffered records. Each
// record is drained exactly once even when Record calls race with Drain. A
// drain past the threshold leaves the remainder buffered for the next one.
func (c *Collector) Drain() datamodel.Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.buffer)
	if n == 0 {
		return nil
	}
	if n > c.batchSize {
		n = c.batchSize
	}

	batch := make(datamodel.Batch, n)
	copy(batch, c.buffer[:n])

	remainder := c.buffer[n:]
	c.buffer = make([]datamodel.TestExecution, 0, c.batchSize)
	c.buffer = append(c.buffer, remainder...)

	batchesDrained.Inc()
	return batch
}

// Flush drains and uploads synchronously, retries included. Callers that
// need a delivery guarantee before proceeding (end-of-suite teardown) use
// this; the ctx deadline bounds how long they are willing to wait.
func (c *Collector) Flush(ctx context.Context) {
	c.drainAndUpload(ctx)
}

// Shutdown stops the flush ticker, waits for in-flight threshold uploads and
// performs a final flush. Safe to call multiple times and safe to call when
// nothing was ever recorded.
func (c *Collector) Shutdown(ctx context.Context) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		close(c.quit)
		c.mu.Unlock()

		c.loopDone.Wait()
		c.uploads.Wait()
		c.drainAndUpload(ctx)
	})
}

func (c *Collector) runFlushLoop() {
	defer c.loopDone.Done()
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			c.drainAndUpload(context.Background())
		}
	}
}

// drainAndUpload keeps draining until the buffer is below one full batch, so
// a backlog built up while an upload was in flight clears out. Concurrent
// callers are serialized, preserving batch order end to end.
func (c *Collector) drainAndUpload(ctx context.Context) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	for {
		batch := c.Drain()
		if len(batch) == 0 {
			return
		}
		c.upload(ctx, batch)
		if len(batch) < c.batchSize {
			return
		}
	}
}
