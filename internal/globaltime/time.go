// Package globaltime is the clock behind record timestamps and publish times.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu     sync.RWMutex
	frozen *time.Time
)

func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	if frozen != nil {
		return *frozen
	}
	return time.Now()
}

func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins Now to t until the returned restore func runs.
func Freeze(t time.Time) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	previous := frozen
	pinned := t
	frozen = &pinned
	return func() {
		mu.Lock()
		defer mu.Unlock()
		frozen = previous
	}
}

// Advance moves a frozen clock forward. The wall clock is left alone.
func Advance(d time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if frozen == nil {
		return
	}
	next := frozen.Add(d)
	frozen = &next
}
