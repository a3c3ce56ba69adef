package duo

import (
	"testing"
	"time"
)

func TestRateLimiterSpacing(t *testing.T) {
	now := time.Unix(1000, 0)
	var slept []time.Duration

	rl := NewRateLimiter(60) // one call per second
	rl.now = func() time.Time { return now }
	rl.sleep = func(d time.Duration) {
		slept = append(slept, d)
		now = now.Add(d)
	}

	rl.Wait() // idle start: lastCall is zero, no sleep
	if len(slept) != 0 {
		t.Fatalf("first call slept %v, want no sleep", slept)
	}

	now = now.Add(300 * time.Millisecond)
	rl.Wait()
	if len(slept) != 1 {
		t.Fatalf("second call within the interval did not sleep")
	}
	if got, want := slept[0], 700*time.Millisecond; got != want {
		t.Errorf("slept %v, want %v", got, want)
	}
}

func TestRateLimiterIdleNoWait(t *testing.T) {
	now := time.Unix(1000, 0)
	slept := 0

	rl := NewRateLimiter(60)
	rl.now = func() time.Time { return now }
	rl.sleep = func(time.Duration) { slept++ }

	rl.Wait()
	now = now.Add(time.Hour)
	rl.Wait()

	if slept != 0 {
		t.Errorf("slept %d times after a long idle period, want 0", slept)
	}
}
