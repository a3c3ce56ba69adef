package duo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy(maxRetries int, jitter bool, slept *[]time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   4 * time.Second,
		Multiplier: 2,
		Jitter:     jitter,
		sleep:      func(d time.Duration) { *slept = append(*slept, d) },
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(3, false, &slept)

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls <= 2 {
			return &ServerError{StatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want success after retries", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}

	// Two failures before success: two sleeps, doubling then capped.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %d times (%v), want %d", len(slept), slept, len(want))
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRetryDelayCapped(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(4, false, &slept)

	_ = p.Do(context.Background(), func() error {
		return &RateLimitError{RetryAfter: 60}
	})

	// 1s, 2s, 4s, then capped at 4s. No sleep after the final attempt.
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRetryNonRetryableImmediate(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(3, false, &slept)

	calls := 0
	authErr := &AuthError{StatusCode: 401, Message: "bad credentials"}
	err := p.Do(context.Background(), func() error {
		calls++
		return authErr
	})

	if !errors.Is(err, authErr) {
		t.Errorf("Do returned %v, want the auth error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on auth failure)", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v, want no sleeps", slept)
	}
}

func TestRetryExhaustionReturnsLastError(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(2, false, &slept)

	last := &ServerError{StatusCode: 500, Body: "third"}
	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls == 3 {
			return last
		}
		return &ServerError{StatusCode: 500}
	})

	if !errors.Is(err, last) {
		t.Errorf("Do returned %v, want the last failure", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
}

func TestRetryJitterBounds(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(1, true, &slept)

	_ = p.Do(context.Background(), func() error {
		return &ServerError{StatusCode: 500}
	})

	if len(slept) != 1 {
		t.Fatalf("slept %v, want one sleep", slept)
	}
	if slept[0] < 500*time.Millisecond || slept[0] >= 1500*time.Millisecond {
		t.Errorf("jittered delay %v outside [0.5s, 1.5s)", slept[0])
	}
}

func TestRetryContextCancelled(t *testing.T) {
	var slept []time.Duration
	p := testPolicy(3, false, &slept)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func() error {
		return &ServerError{StatusCode: 500}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Do returned %v, want context.Canceled", err)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v after cancellation", slept)
	}
}
