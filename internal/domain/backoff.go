package domain

import (
	"math/rand/v2"
	"time"
)

// Retry backoff parameters. The schedule is exponential with uniform
// jitter: attempt 1 waits 30-45s, attempt 2 waits 60-75s, attempt 3
// waits 120-135s, and so on.
const (
	BaseRetryDelay = 30 * time.Second
	RetryJitterMax = 15 * time.Second
)

// NextRetryDelay computes the wait before retry attempt retryCount:
//
//	2^(retryCount-1) * BaseRetryDelay + uniform[0, RetryJitterMax)
//
// The jitter spreads out retries of items that failed simultaneously,
// so a downstream outage does not produce a synchronized retry wave.
func NextRetryDelay(retryCount int) time.Duration {
	if retryCount < 1 {
		retryCount = 1
	}
	delay := time.Duration(1<<uint(retryCount-1)) * BaseRetryDelay
	jitter := time.Duration(rand.Int64N(int64(RetryJitterMax)))
	return delay + jitter
}
