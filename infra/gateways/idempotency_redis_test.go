package gateways

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	protocols "github.com/giovaniif/court-booking/protocols"
)

func newRedisGateway(t *testing.T) (*IdempotencyGatewayRedis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewIdempotencyGatewayRedis(client), mr
}

func TestRedisClaimsFreshKey(t *testing.T) {
	gateway, mr := newRedisGateway(t)

	result, err := gateway.ReserveIdempotencyKey(context.Background(), "key-1")
	if err != nil || result != nil {
		t.Fatalf("expected nil result and nil error, got %v, %v", result, err)
	}
	k := idempotencyKeyPrefix + "key-1"
	if status := mr.HGet(k, "status"); status != statusProcessing {
		t.Fatalf("expected status %s, got %q", statusProcessing, status)
	}
	if ttl := mr.TTL(k); ttl != ProcessingLease {
		t.Fatalf("expected ttl %v, got %v", ProcessingLease, ttl)
	}
}

func TestRedisRejectsKeyInProgress(t *testing.T) {
	gateway, _ := newRedisGateway(t)
	ctx := context.Background()

	gateway.ReserveIdempotencyKey(ctx, "key-1")
	result, err := gateway.ReserveIdempotencyKey(ctx, "key-1")
	if !errors.Is(err, ErrKeyInProgress) || result != nil {
		t.Fatalf("expected ErrKeyInProgress, got %v, %v", result, err)
	}
}

func TestRedisReplaysStoredSuccess(t *testing.T) {
	gateway, mr := newRedisGateway(t)
	ctx := context.Background()
	ts := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)

	gateway.ReserveIdempotencyKey(ctx, "key-1")
	err := gateway.MarkSuccess(ctx, "key-1", protocols.IdempotencyKeyResult{
		Success:       true,
		ReservationId: "res-1",
		CourtId:       4,
		Timestamp:     ts,
		DurationHours: 2,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if ttl := mr.TTL(idempotencyKeyPrefix + "key-1"); ttl != SuccessRetention {
		t.Fatalf("expected ttl %v, got %v", SuccessRetention, ttl)
	}

	result, err := gateway.ReserveIdempotencyKey(ctx, "key-1")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result == nil || !result.Success || result.ReservationId != "res-1" || result.CourtId != 4 || result.DurationHours != 2 || !result.Timestamp.Equal(ts) {
		t.Fatalf("unexpected replayed result: %+v", result)
	}
}

func TestRedisMarkFailureReleasesKey(t *testing.T) {
	gateway, mr := newRedisGateway(t)
	ctx := context.Background()

	gateway.ReserveIdempotencyKey(ctx, "key-1")
	if err := gateway.MarkFailure(ctx, "key-1"); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if mr.Exists(idempotencyKeyPrefix + "key-1") {
		t.Fatalf("expected key to be deleted")
	}
	if result, err := gateway.ReserveIdempotencyKey(ctx, "key-1"); err != nil || result != nil {
		t.Fatalf("expected key to be claimable again, got %v, %v", result, err)
	}
}

func TestRedisClaimExpiresAfterLease(t *testing.T) {
	gateway, mr := newRedisGateway(t)
	ctx := context.Background()

	gateway.ReserveIdempotencyKey(ctx, "key-1")
	mr.FastForward(ProcessingLease)

	if result, err := gateway.ReserveIdempotencyKey(ctx, "key-1"); err != nil || result != nil {
		t.Fatalf("expected expired claim to be claimable again, got %v, %v", result, err)
	}
}

func TestRedisRejectsCancelledContext(t *testing.T) {
	gateway, mr := newRedisGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gateway.ReserveIdempotencyKey(ctx, "key-1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("expected nothing written, got %v", mr.Keys())
	}
}
