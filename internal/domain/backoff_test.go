package domain_test

import (
	"testing"
	"time"

	"github.com/notifyhub/delivery-queue/internal/domain"
)

func TestNextRetryDelay_Ranges(t *testing.T) {
	tests := []struct {
		attempt int
		min     time.Duration
		max     time.Duration // exclusive
	}{
		{1, 30 * time.Second, 45 * time.Second},
		{2, 60 * time.Second, 75 * time.Second},
		{3, 120 * time.Second, 135 * time.Second},
		{4, 240 * time.Second, 255 * time.Second},
	}

	// The jitter is random; sample enough times to cover the range.
	for _, tc := range tests {
		for i := 0; i < 200; i++ {
			d := domain.NextRetryDelay(tc.attempt)
			if d < tc.min || d >= tc.max {
				t.Fatalf("attempt %d: delay %v outside [%v, %v)", tc.attempt, d, tc.min, tc.max)
			}
		}
	}
}

func TestNextRetryDelay_ClampsLowAttempts(t *testing.T) {
	// Attempt numbers below 1 behave like the first attempt.
	for _, attempt := range []int{0, -1} {
		d := domain.NextRetryDelay(attempt)
		if d < 30*time.Second || d >= 45*time.Second {
			t.Fatalf("attempt %d: delay %v outside first-attempt range", attempt, d)
		}
	}
}
