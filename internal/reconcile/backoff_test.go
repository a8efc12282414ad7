package reconcile

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/ragent/internal/testutil/testlog"
)

func TestNextBackoffDelayGrowsAndCaps(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := NextBackoffDelay(cfg, i+1, nil); got != w {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w)
		}
	}
}

func TestNextBackoffDelayJitterBounds(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: 100 * time.Millisecond, Multiplier: 1, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		got := NextBackoffDelay(cfg, 3, rng)
		if got < 50*time.Millisecond || got >= 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", got)
		}
	}
}

func TestNextBackoffDelayJitterRespectsCap(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{InitialDelay: time.Second, Multiplier: 2, MaxDelay: time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		got := NextBackoffDelay(cfg, 4, rng)
		if got > time.Second {
			t.Fatalf("jittered delay above MaxDelay: %v", got)
		}
		if got < 500*time.Millisecond {
			t.Fatalf("jittered delay below half the cap: %v", got)
		}
	}
}

func TestNextBackoffDelayDisabled(t *testing.T) {
	testlog.Start(t)
	if got := NextBackoffDelay(BackoffConfig{}, 5, nil); got != 0 {
		t.Fatalf("expected zero delay, got %v", got)
	}
}

func TestSleepContextCancelled(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
