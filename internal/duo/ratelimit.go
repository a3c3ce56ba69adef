package duo

import (
	"sync"
	"time"
)

// RateLimiter spaces remote calls so the aggregate rate stays under a
// calls-per-minute ceiling. The mutex is held across the wait so callers
// sharing one limiter are strictly serialized.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time

	// Test seams.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewRateLimiter(callsPerMinute int) *RateLimiter {
	if callsPerMinute <= 0 {
		callsPerMinute = 50
	}
	return &RateLimiter{
		minInterval: time.Minute / time.Duration(callsPerMinute),
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until at least the minimum interval has passed since the
// previous permitted call, then stamps the current time as the last call.
func (rl *RateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := rl.now().Sub(rl.lastCall)
	if elapsed < rl.minInterval {
		rl.sleep(rl.minInterval - elapsed)
	}
	rl.lastCall = rl.now()
}
