package ratelimit

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBlocksOverThreshold(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	defer limiter.Stop()

	addr := "192.0.2.1"

	// At the threshold the address is still allowed; one more blocks it.
	for i := 0; i < 3; i++ {
		limiter.RecordInvalid(addr)
		assert.False(t, limiter.IsBlocked(addr), "attempt %d should not block", i+1)
	}

	limiter.RecordInvalid(addr)
	assert.True(t, limiter.IsBlocked(addr))
}

func TestLimiterUnknownAddress(t *testing.T) {
	limiter := NewLimiter(3, time.Minute)
	defer limiter.Stop()

	assert.False(t, limiter.IsBlocked("203.0.113.9"))
}

func TestLimiterPerAddress(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	defer limiter.Stop()

	limiter.RecordInvalid("192.0.2.1")
	limiter.RecordInvalid("192.0.2.1")

	assert.True(t, limiter.IsBlocked("192.0.2.1"))
	assert.False(t, limiter.IsBlocked("192.0.2.2"))
}

func TestLimiterWindowExpiry(t *testing.T) {
	limiter := NewLimiter(1, 50*time.Millisecond)
	defer limiter.Stop()

	addr := "192.0.2.1"
	limiter.RecordInvalid(addr)
	limiter.RecordInvalid(addr)
	require.True(t, limiter.IsBlocked(addr))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, limiter.IsBlocked(addr))

	// A fresh invalid request after expiry starts a new window.
	limiter.RecordInvalid(addr)
	assert.False(t, limiter.IsBlocked(addr))
}

func TestLimiterConcurrent(t *testing.T) {
	limiter := NewLimiter(5, time.Minute)
	defer limiter.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("192.0.2.%d", n%2)
			for j := 0; j < 10; j++ {
				limiter.RecordInvalid(addr)
				limiter.IsBlocked(addr)
			}
		}(i)
	}
	wg.Wait()

	assert.True(t, limiter.IsBlocked("192.0.2.0"))
	assert.True(t, limiter.IsBlocked("192.0.2.1"))
}
