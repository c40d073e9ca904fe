// Package config holds the validated policy object that drives the telemetry
// engine. Invalid values are surfaced synchronously at construction and never
// silently defaulted.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalid = errors.New("invalid telemetry configuration")

const (
	MinBatchSize = 1
	MaxBatchSize = 1000
	MaxRetryCap  = 10
)

// Config is the complete policy for one engine instance.
type Config struct {
	// Endpoint is the base URL of the aggregation service.
	Endpoint string
	// APIKey authenticates uploads.
	APIKey string
	// ProjectID scopes uploads to one project.
	ProjectID string

	// Enabled turns collection on. When false, Record is a no-op.
	Enabled bool

	// BatchSize is the buffered-record threshold that triggers an upload.
	// Bounded to [1, 1000].
	BatchSize int
	// FlushInterval is the cadence of the background drain. Must be > 0.
	FlushInterval time.Duration
	// MaxRetries bounds upload retries beyond the first attempt. [0, 10].
	MaxRetries int
	// RetryDelay is the first retry delay; subsequent retries double it.
	RetryDelay time.Duration
	// MaxRetryDelay caps a single backoff wait. Zero means no cap.
	MaxRetryDelay time.Duration
	// SamplingRate is the probability a recorded execution is kept. [0, 1].
	SamplingRate float64
	// UploadTimeout bounds one upload attempt. Must be > 0.
	UploadTimeout time.Duration

	// EnableCompression gzips upload payloads.
	EnableCompression bool

	// EnableOfflineQueue persists batches that exhaust retries.
	EnableOfflineQueue bool
	// OfflineQueueDir is the directory backing the persistent queue.
	OfflineQueueDir string
	// OfflineQueueMaxEntries caps the queue; oldest entries are evicted first.
	OfflineQueueMaxEntries int
	// OfflineMaxReplayAttempts evicts an entry after this many failed replays.
	OfflineMaxReplayAttempts int
	// OfflineMaxAge evicts entries older than this at replay time.
	OfflineMaxAge time.Duration
}

// Validate checks every bound. It reports the first violation; callers must
// treat any error as fatal for engine construction.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: api key is empty", ErrInvalid)
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return fmt.Errorf("%w: project id is empty", ErrInvalid)
	}
	if c.BatchSize < MinBatchSize || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch size %d outside [%d, %d]", ErrInvalid, c.BatchSize, MinBatchSize, MaxBatchSize)
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("%w: flush interval %s must be positive", ErrInvalid, c.FlushInterval)
	}
	if c.MaxRetries < 0 || c.MaxRetries > MaxRetryCap {
		return fmt.Errorf("%w: max retries %d outside [0, %d]", ErrInvalid, c.MaxRetries, MaxRetryCap)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay %s must be >= 0", ErrInvalid, c.RetryDelay)
	}
	if c.MaxRetryDelay < 0 {
		return fmt.Errorf("%w: max retry delay %s must be >= 0", ErrInvalid, c.MaxRetryDelay)
	}
	if c.SamplingRate < 0.0 || c.SamplingRate > 1.0 {
		return fmt.Errorf("%w: sampling rate %f outside [0.0, 1.0]", ErrInvalid, c.SamplingRate)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("%w: upload timeout %s must be positive", ErrInvalid, c.UploadTimeout)
	}
	if c.EnableOfflineQueue {
		if strings.TrimSpace(c.OfflineQueueDir) == "" {
			return fmt.Errorf("%w: offline queue enabled but no queue directory set", ErrInvalid)
		}
		if c.OfflineQueueMaxEntries <= 0 {
			return fmt.Errorf("%w: offline queue max entries %d must be positive", ErrInvalid, c.OfflineQueueMaxEntries)
		}
		if c.OfflineMaxReplayAttempts <= 0 {
			return fmt.Errorf("%w: offline max replay attempts %d must be positive", ErrInvalid, c.OfflineMaxReplayAttempts)
		}
		if c.OfflineMaxAge <= 0 {
			return fmt.Errorf("%w: offline max age %s must be positive", ErrInvalid, c.OfflineMaxAge)
		}
	}
	return nil
}
