package gateways

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/giovaniif/court-booking/infra"
)

type mockSleeper struct {
	slept []time.Duration
}

func (m *mockSleeper) Sleep(ctx context.Context, duration time.Duration) error {
	m.slept = append(m.slept, duration)
	return nil
}

func TestRetryWithBackoffStopsOnSuccess(t *testing.T) {
	sleeper := &mockSleeper{}
	calls := 0
	op := RetryWithBackoff(func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return infra.NewTimeoutError("slow broker")
		}
		return nil
	}, sleeper)

	if err := op(context.Background()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(sleeper.slept) != 1 || sleeper.slept[0] != BASE_DELAY {
		t.Fatalf("expected one sleep of %v, got %v", BASE_DELAY, sleeper.slept)
	}
}

func TestRetryWithBackoffDoublesDelay(t *testing.T) {
	sleeper := &mockSleeper{}
	calls := 0
	op := RetryWithBackoff(func(ctx context.Context) error {
		calls++
		return infra.NewUnavailableError("journal", errors.New("connection refused"))
	}, sleeper)

	err := op(context.Background())
	if !errors.Is(err, infra.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if calls != MAX_RETRIES {
		t.Fatalf("expected %d calls, got %d", MAX_RETRIES, calls)
	}
	if len(sleeper.slept) != MAX_RETRIES-1 {
		t.Fatalf("expected %d sleeps, got %v", MAX_RETRIES-1, sleeper.slept)
	}
	for i := 1; i < len(sleeper.slept); i++ {
		if sleeper.slept[i] != 2*sleeper.slept[i-1] {
			t.Fatalf("expected doubling delays, got %v", sleeper.slept)
		}
	}
}

func TestRetryWithBackoffDoesNotRetryPermanentErrors(t *testing.T) {
	sleeper := &mockSleeper{}
	calls := 0
	op := RetryWithBackoff(func(ctx context.Context) error {
		calls++
		return errors.New("bad payload")
	}, sleeper)

	if err := op(context.Background()); err == nil {
		t.Fatalf("expected error, got nil")
	}
	if calls != 1 || len(sleeper.slept) != 0 {
		t.Fatalf("expected a single attempt without sleeping, got %d calls and %v", calls, sleeper.slept)
	}
}

func TestRetryWithBackoffHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	op := RetryWithBackoff(func(ctx context.Context) error {
		calls++
		return nil
	}, &mockSleeper{})

	if err := op(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no calls, got %d", calls)
	}
}

func TestSleeperReturnsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := NewSleeper().Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("expected sleep to return immediately")
	}
}
