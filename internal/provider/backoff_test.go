package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBackoff_ExponentialGrowth(t *testing.T) {
	base := 500 * time.Millisecond
	cap := 10 * time.Second

	assert.Equal(t, 500*time.Millisecond, computeBackoffWithRand(1, base, cap, nil))
	assert.Equal(t, 1*time.Second, computeBackoffWithRand(2, base, cap, nil))
	assert.Equal(t, 2*time.Second, computeBackoffWithRand(3, base, cap, nil))
	assert.Equal(t, 4*time.Second, computeBackoffWithRand(4, base, cap, nil))
	assert.Equal(t, 8*time.Second, computeBackoffWithRand(5, base, cap, nil))
}

func TestComputeBackoff_Capped(t *testing.T) {
	base := 500 * time.Millisecond
	cap := 10 * time.Second

	assert.Equal(t, cap, computeBackoffWithRand(6, base, cap, nil))
	assert.Equal(t, cap, computeBackoffWithRand(50, base, cap, nil))
}

func TestComputeBackoff_JitterAdded(t *testing.T) {
	fixedJitter := func(n int64) int64 { return n - 1 }
	got := computeBackoffWithRand(1, time.Second, time.Minute, fixedJitter)
	assert.Equal(t, time.Second+backoffMaxJitter-1, got)
}

func TestComputeBackoff_DefendsAgainstBadInputs(t *testing.T) {
	// Attempt below 1 behaves like the first attempt.
	assert.Equal(t, time.Second, computeBackoffWithRand(0, time.Second, time.Minute, nil))
	// Non-positive base falls back to the default.
	assert.Equal(t, 500*time.Millisecond, computeBackoffWithRand(1, 0, time.Minute, nil))
	// Cap below base is raised to base.
	assert.Equal(t, 2*time.Second, computeBackoffWithRand(5, 2*time.Second, time.Millisecond, nil))
}

func TestComputeBackoff_JitterWithinBound(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := ComputeBackoff(1, base, time.Minute)
		assert.GreaterOrEqual(t, got, base)
		assert.Less(t, got, base+backoffMaxJitter)
	}
}
