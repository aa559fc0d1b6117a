package provider

import (
	"math/rand"
	"time"
)

const backoffMaxJitter = 250 * time.Millisecond

// ComputeBackoff returns a bounded exponential delay with jitter.
// Formula: min(base * 2^(attempt-1), cap) + random(0..maxJitter).
func ComputeBackoff(attempt int, base, cap time.Duration) time.Duration {
	return computeBackoffWithRand(attempt, base, cap, rand.Int63n)
}

// computeBackoffWithRand takes the jitter source for deterministic tests.
func computeBackoffWithRand(attempt int, base, cap time.Duration, randInt63n func(int64) int64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if cap < base {
		cap = base
	}

	delay := base
	for i := 1; i < attempt && delay < cap; i++ {
		delay *= 2
		if delay >= cap {
			delay = cap
			break
		}
	}

	if randInt63n == nil {
		return delay
	}
	return delay + time.Duration(randInt63n(int64(backoffMaxJitter)))
}
