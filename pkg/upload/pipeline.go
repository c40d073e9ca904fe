// Package upload turns drained batches into delivered wire payloads,
// tolerating transient network failure with bounded retries and exponential
// backoff.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xping-dev/sdk-go/internal"
	"github.com/xping-dev/sdk-go/pkg/config"
	"github.com/xping-dev/sdk-go/pkg/datamodel"
)

// ErrRetriesExhausted marks a still-retryable failure that used up every
// configured attempt. The caller decides whether to offline-queue the batch.
var ErrRetriesExhausted = errors.New("upload retries exhausted")

// TerminalError is a client-error response that cannot succeed by repetition,
// e.g. authentication or validation failure. It is never retried.
type TerminalError struct {
	StatusCode int
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal upload failure: status %d", e.StatusCode)
}

// Pipeline delivers batches. At most one upload is in flight per pipeline
// instance. The mutex alone does not hand out the lock FIFO; callers that
// need batches delivered in drain order must serialize their Upload calls,
// as the collector's delivery path does.
type Pipeline struct {
	transport     Transport
	projectID     string
	maxRetries    int
	retryDelay    time.Duration
	maxRetryDelay time.Duration
	timeout       time.Duration
	compress      bool
	log           *zap.SugaredLogger

	// wait is the backoff sleep, injected by tests.
	wait func(ctx context.Context, d time.Duration) error

	inflight sync.Mutex
}

func NewPipeline(cfg *config.Config, transport Transport, log *zap.SugaredLogger) *Pipeline {
	if log == nil {
		log = zap.S()
	}
	return &Pipeline{
		transport:     transport,
		projectID:     cfg.ProjectID,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    cfg.RetryDelay,
		maxRetryDelay: cfg.MaxRetryDelay,
		timeout:       cfg.UploadTimeout,
		compress:      cfg.EnableCompression,
		log:           log,
		wait:          waitFor,
	}
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether a failed attempt is worth repeating: transport
// errors (timeouts, connection failures), rate limiting and server errors
// are; all other client errors are terminal.
func retryable(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	if statusCode == http.StatusTooManyRequests {
		return true
	}
	return statusCode >= 500
}

func succeeded(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// Upload serializes and delivers one batch. On a retryable failure it waits
// RetryDelay*2^(attempt-1) between attempts, up to MaxRetries retries. The
// returned error is nil on success, a *TerminalError for failures that must
// not be repeated, or wraps ErrRetriesExhausted otherwise.
func (p *Pipeline) Upload(ctx context.Context, batch datamodel.Batch) (datamodel.UploadResult, error) {
	if len(batch) == 0 {
		return datamodel.UploadResult{Success: true, Count: 0}, nil
	}

	payload, err := BuildPayload(p.projectID, batch, p.compress, p.log)
	if err != nil {
		p.log.Errorw("Failed to serialize batch", "size", len(batch), "error", err)
		return datamodel.UploadResult{Count: len(batch), Error: err.Error()}, err
	}
	if payload.Count == 0 {
		// Every record was malformed and dropped.
		return datamodel.UploadResult{Success: true, Count: 0}, nil
	}

	p.inflight.Lock()
	defer p.inflight.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			uploadRetries.Inc()
			backoff := internal.GetRetryBackoff(int64(attempt), p.retryDelay, p.maxRetryDelay)
			if err = p.wait(ctx, backoff); err != nil {
				lastErr = err
				break
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		statusCode, sendErr := p.transport.Send(attemptCtx, payload)
		cancel()

		if sendErr == nil && succeeded(statusCode) {
			uploadsSucceeded.Inc()
			executionsUploaded.Add(float64(payload.Count))
			return datamodel.UploadResult{Success: true, Count: payload.Count}, nil
		}

		if !retryable(statusCode, sendErr) {
			terminal := &TerminalError{StatusCode: statusCode}
			p.log.Errorw("Terminal upload failure, not retrying",
				"status", statusCode, "executions", payload.Count)
			uploadsFailed.Inc()
			return datamodel.UploadResult{Count: payload.Count, Error: terminal.Error()}, terminal
		}

		if sendErr != nil {
			lastErr = sendErr
		} else {
			lastErr = fmt.Errorf("upstream returned status %d", statusCode)
		}
		p.log.Warnw("Upload attempt failed",
			"attempt", attempt+1, "maxAttempts", p.maxRetries+1, "error", lastErr)
	}

	uploadsFailed.Inc()
	err = fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, p.maxRetries+1, lastErr)
	return datamodel.UploadResult{Count: payload.Count, Error: err.Error()}, err
}
