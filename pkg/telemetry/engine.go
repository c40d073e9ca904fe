// Package telemetry wires the collector, upload pipeline and offline queue
// into one explicit engine handle. Adapters construct it once and pass it by
// reference; there is no ambient global state.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/pkg/collector"
	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
	"github.com/xping-dev/sdk-go/pkg/identity"
	"github.com/xping-dev/sdk-go/pkg/offlinequeue"
	"github.com/xping-dev/sdk-go/pkg/retrydetect"
	"github.com/xping-dev/sdk-go/pkg/upload"
)

type Engine struct {
	cfg       *config.Config
	collector *collector.Collector
	pipeline  *upload.Pipeline
	queue     *offlinequeue.Queue
	detector  retrydetect.Detector
	log       *zap.SugaredLogger

	shutdownOnce sync.Once
	shutdownErr  error
}

type options struct {
	transport upload.Transport
	detector  retrydetect.Detector
	log       *zap.SugaredLogger
}

type Option func(*options)

// WithTransport substitutes the network transport, mainly for testing.
func WithTransport(t upload.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithDetector supplies the retry-metadata detector for the integrating
// framework adapter.
func WithDetector(d retrydetect.Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithLogger routes diagnostics somewhere other than the global zap logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(o *options) { o.log = log }
}

// New validates the configuration and builds an engine. A validation error is
// the only error class surfaced synchronously to integrating code; everything
// at runtime is recovered locally and logged.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.S()
	}
	if o.transport == nil {
		o.transport = upload.NewHTTPTransport(cfg.Endpoint, cfg.APIKey, cfg.ProjectID)
	}
	if o.detector == nil {
		o.detector = retrydetect.NewRegistry(o.log)
	}

	e := &Engine{
		cfg:      cfg,
		pipeline: upload.NewPipeline(cfg, o.transport, o.log),
		detector: o.detector,
		log:      o.log,
	}

	if cfg.EnableOfflineQueue {
		queue, err := offlinequeue.Open(cfg, o.log)
		if err != nil {
			// The engine still works without its last-resort storage;
			// exhausted batches will be dropped and logged instead.
			o.log.Errorw("Failed to open offline queue, continuing without it",
				"dir", cfg.OfflineQueueDir, "error", err)
		} else {
			e.queue = queue
		}
	}

	e.collector = collector.New(cfg, e.deliver, o.log)
	return e, nil
}

// Record buffers one completed execution. Never blocks, never returns an
// error.
func (e *Engine) Record(execution *datamodel.TestExecution) {
	e.collector.Record(execution)
}

// NewExecution stamps a freshly generated identity onto an execution record.
// The error is an identity validation failure (empty or malformed name).
func (e *Engine) NewExecution(fullyQualifiedName string, module string, parameters []any, displayName string,
	outcome datamodel.Outcome, startedAt time.Time, finishedAt time.Time) (*datamodel.TestExecution, error) {
	id, err := identity.Generate(fullyQualifiedName, module, parameters, displayName)
	if err != nil {
		return nil, err
	}
	return datamodel.NewTestExecution(id, outcome, startedAt, finishedAt), nil
}

// StampRetryMetadata consults the detector registry and attaches retry
// metadata to the execution when any registered marker matches.
func (e *Engine) StampRetryMetadata(execution *datamodel.TestExecution, markers map[string]string) {
	if execution == nil || len(markers) == 0 {
		return
	}
	if metadata, ok := e.detector.Detect(markers); ok {
		execution.Retry = metadata
	}
}

// Flush drains and uploads synchronously, retries included. Use at
// end-of-suite teardown when delivery must be attempted before the process
// exits; the ctx deadline bounds the wait.
func (e *Engine) Flush(ctx context.Context) {
	e.collector.Flush(ctx)
}

// ReplayPending re-sends batches parked in the offline queue. Returns the
// number of batches delivered.
func (e *Engine) ReplayPending(ctx context.Context) (int, error) {
	if e.queue == nil {
		return 0, nil
	}
	return e.queue.ReplayPending(ctx, func(ctx context.Context, batch datamodel.Batch) error {
		_, err := e.pipeline.Upload(ctx, batch)
		return err
	})
}

// QueueLength reports the number of batches awaiting offline replay.
func (e *Engine) QueueLength() uint64 {
	if e.queue == nil {
		return 0
	}
	return e.queue.Length()
}

// OfflineQueueOpen reports whether the persistent queue is usable. False when
// the queue is disabled by configuration or failed to open.
func (e *Engine) OfflineQueueOpen() bool {
	return e.queue != nil
}

// Shutdown stops the background flusher, performs a final flush and releases
// the offline queue. Idempotent; later calls return the first result.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.shutdownOnce.Do(func() {
		e.collector.Shutdown(ctx)
		if e.queue != nil {
			e.shutdownErr = e.queue.Close()
		}
	})
	return e.shutdownErr
}

// deliver is the collector's upload function: one batch through the retry
// pipeline, falling back to the offline queue on exhausted retries.
func (e *Engine) deliver(ctx context.Context, batch datamodel.Batch) {
	result, err := e.pipeline.Upload(ctx, batch)
	if err == nil {
		return
	}

	if errors.Is(err, upload.ErrRetriesExhausted) && e.queue != nil {
		if qErr := e.queue.Enqueue(batch); qErr != nil {
			e.log.Errorw("Failed to queue batch offline, data lost",
				"executions", len(batch), "error", qErr)
		}
		return
	}

	e.log.Errorw("Batch dropped",
		"executions", result.Count, "error", err)
}
