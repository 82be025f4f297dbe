// Package ratelimit tracks invalid webhook requests per client address and
// blocks repeat offenders for the rest of the tracking window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts invalid requests per address in a sliding window. Only
// invalid requests count: validated requests never touch the counters, so a
// legitimate client cannot reset an attacker's window by sharing an address.
type Limiter struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	threshold int
	window    time.Duration
	cleanup   *time.Ticker
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

type entry struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// NewLimiter creates a limiter that blocks an address once it accumulates
// more than threshold invalid requests within one window.
func NewLimiter(threshold int, window time.Duration) *Limiter {
	l := &Limiter{
		entries:   make(map[string]*entry),
		threshold: threshold,
		window:    window,
		cleanup:   time.NewTicker(window * 2),
		stopCh:    make(chan struct{}),
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.cleanupLoop()
	}()

	return l
}

// RecordInvalid registers an invalid request from the given address.
func (l *Limiter) RecordInvalid(address string) {
	l.mu.RLock()
	e, exists := l.entries[address]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		// Double-check after acquiring the write lock
		e, exists = l.entries[address]
		if !exists {
			e = &entry{windowStart: time.Now()}
			l.entries[address] = e
		}
		l.mu.Unlock()
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if now.Sub(e.windowStart) >= l.window {
		e.count = 1
		e.windowStart = now
	} else {
		e.count++
	}
}

// IsBlocked reports whether the address is over the threshold for the
// current window. Blocking is monotonic within a window: once crossed, every
// call returns true until the window elapses on its own.
func (l *Limiter) IsBlocked(address string) bool {
	l.mu.RLock()
	e, exists := l.entries[address]
	l.mu.RUnlock()

	if !exists {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if time.Since(e.windowStart) >= l.window {
		return false
	}

	return e.count > l.threshold
}

func (l *Limiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanup.C:
			l.mu.Lock()
			now := time.Now()
			for address, e := range l.entries {
				e.mu.Lock()
				if now.Sub(e.windowStart) > l.window*2 {
					delete(l.entries, address)
				}
				e.mu.Unlock()
			}
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stopCh)
	l.cleanup.Stop()
	l.wg.Wait()
}
