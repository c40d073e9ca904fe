package internal

import (
	"time"
)

const Int64Max = 1<<63 - 1

// GetRetryBackoff returns the delay to wait before retry attempt `attempt`
// (1-based): slotTime * 2^(attempt-1), capped at maximum.
//
// Unlike randomized collision backoff, upload retries need a reproducible
// schedule: with slotTime=2s the retries happen after 2s, 4s, 8s, ...
func GetRetryBackoff(attempt int64, slotTime time.Duration, maximum time.Duration) (backoff time.Duration) {
	if slotTime <= 0 || attempt <= 0 {
		return time.Duration(0)
	}

	shift := uint64(attempt - 1)
	if shift >= 63 {
		return maximum
	}
	mult := uint64(1) << shift

	// Prevents overflow
	u64Time := uint64(slotTime.Nanoseconds()) * mult
	if u64Time/mult != uint64(slotTime.Nanoseconds()) || u64Time > Int64Max {
		return maximum
	}

	backoff = time.Duration(u64Time)
	if maximum > 0 && backoff > maximum {
		backoff = maximum
	}
	return backoff
}
