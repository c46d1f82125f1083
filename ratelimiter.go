package porby

import (
	"sync"
	"time"
)

// rateLimiter implements spec §4.2's exact algorithm: a single-second
// tumbling window guarded by its own mutex. This is deliberately
// hand-rolled rather than built on golang.org/x/time/rate — a generic
// token bucket does not express "reset to 1 on second boundary,
// increment-then-compare otherwise", and error/fatal entries must
// bypass the counter entirely rather than merely be weighted.
type rateLimiter struct {
	mu          sync.Mutex
	maxPerSec   int
	windowStart time.Time
	counter     int

	now func() time.Time // overridable in tests
}

func newRateLimiter(maxPerSecond int) *rateLimiter {
	// windowStart stays zero so the first call opens a window at r.now().
	return &rateLimiter{maxPerSec: maxPerSecond, now: time.Now}
}

// exceeded reports whether this call should be dropped. maxPerSec <= 0
// disables limiting entirely, per spec.
func (r *rateLimiter) exceeded() bool {
	if r.maxPerSec <= 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.windowStart) >= time.Second {
		r.windowStart = now
		r.counter = 1
		return false
	}

	r.counter++
	return r.counter > r.maxPerSec
}
