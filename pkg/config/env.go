package config

import (
	"time"

	"github.com/united-manufacturing-hub/umh-utils/env"
)

// NewFromEnv builds and validates a Config from XPING_* environment
// variables. Endpoint, api key and project id are required; everything else
// falls back to the documented defaults.
func NewFromEnv() (*Config, error) {
	endpoint, err := env.GetAsString("XPING_ENDPOINT", true, "")
	if err != nil {
		return nil, err
	}
	apiKey, err := env.GetAsString("XPING_API_KEY", true, "")
	if err != nil {
		return nil, err
	}
	projectID, err := env.GetAsString("XPING_PROJECT_ID", true, "")
	if err != nil {
		return nil, err
	}

	enabled, err := env.GetAsBool("XPING_ENABLED", false, true)
	if err != nil {
		return nil, err
	}
	batchSize, err := env.GetAsInt("XPING_BATCH_SIZE", false, 100)
	if err != nil {
		return nil, err
	}
	flushIntervalSec, err := env.GetAsInt("XPING_FLUSH_INTERVAL_SECONDS", false, 30)
	if err != nil {
		return nil, err
	}
	maxRetries, err := env.GetAsInt("XPING_MAX_RETRIES", false, 3)
	if err != nil {
		return nil, err
	}
	retryDelayMs, err := env.GetAsInt("XPING_RETRY_DELAY_MILLISECONDS", false, 2000)
	if err != nil {
		return nil, err
	}
	maxRetryDelaySec, err := env.GetAsInt("XPING_MAX_RETRY_DELAY_SECONDS", false, 300)
	if err != nil {
		return nil, err
	}
	samplingRate, err := env.GetAsFloat64("XPING_SAMPLING_RATE", false, 1.0)
	if err != nil {
		return nil, err
	}
	uploadTimeoutSec, err := env.GetAsInt("XPING_UPLOAD_TIMEOUT_SECONDS", false, 30)
	if err != nil {
		return nil, err
	}
	compression, err := env.GetAsBool("XPING_ENABLE_COMPRESSION", false, true)
	if err != nil {
		return nil, err
	}
	offlineEnabled, err := env.GetAsBool("XPING_ENABLE_OFFLINE_QUEUE", false, false)
	if err != nil {
		return nil, err
	}
	offlineDir, err := env.GetAsString("XPING_OFFLINE_QUEUE_DIR", offlineEnabled, "")
	if err != nil {
		return nil, err
	}
	offlineMaxEntries, err := env.GetAsInt("XPING_OFFLINE_QUEUE_MAX_ENTRIES", false, 1000)
	if err != nil {
		return nil, err
	}
	offlineMaxReplays, err := env.GetAsInt("XPING_OFFLINE_MAX_REPLAY_ATTEMPTS", false, 10)
	if err != nil {
		return nil, err
	}
	offlineMaxAgeHours, err := env.GetAsInt("XPING_OFFLINE_MAX_AGE_HOURS", false, 72)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Endpoint:                 endpoint,
		APIKey:                   apiKey,
		ProjectID:                projectID,
		Enabled:                  enabled,
		BatchSize:                batchSize,
		FlushInterval:            time.Duration(flushIntervalSec) * time.Second,
		MaxRetries:               maxRetries,
		RetryDelay:               time.Duration(retryDelayMs) * time.Millisecond,
		MaxRetryDelay:            time.Duration(maxRetryDelaySec) * time.Second,
		SamplingRate:             samplingRate,
		UploadTimeout:            time.Duration(uploadTimeoutSec) * time.Second,
		EnableCompression:        compression,
		EnableOfflineQueue:       offlineEnabled,
		OfflineQueueDir:          offlineDir,
		OfflineQueueMaxEntries:   offlineMaxEntries,
		OfflineMaxReplayAttempts: offlineMaxReplays,
		OfflineMaxAge:            time.Duration(offlineMaxAgeHours) * time.Hour,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
