package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/teamflow/notification-worker/internal/ratelimiter"
)

func TestPushLimiter_BurstAdmittedImmediately(t *testing.T) {
	l := ratelimiter.New(100)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected the first burst admitted without throttling, took %v", elapsed)
	}
}

func TestPushLimiter_SmoothsBeyondBurst(t *testing.T) {
	// 10/s with burst 10: the 11th permit needs a refill, so draining
	// 11 tokens takes at least one refill interval.
	l := ratelimiter.New(10)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 11; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("expected the permit past the burst to be throttled, took %v", elapsed)
	}
}

func TestPushLimiter_CancelledContextUnblocks(t *testing.T) {
	l := ratelimiter.New(1)

	// Consume the only token, then wait with a cancelled context.
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected an error when the context is cancelled before a token is available")
	}
}
