package gateways

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	protocols "github.com/giovaniif/court-booking/protocols"
)

const idempotencyKeyPrefix = "idempotency:reservation:"

// claimScript returns the stored hash for KEYS[1], or claims the key with
// status ARGV[1] for ARGV[2] milliseconds and returns an empty reply.
var claimScript = redis.NewScript(`
local state = redis.call("HGETALL", KEYS[1])
if #state > 0 then
	return state
end
redis.call("HSET", KEYS[1], "status", ARGV[1])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return {}
`)

// IdempotencyGatewayRedis keeps one hash per key so that replicas of the
// service share idempotency state.
type IdempotencyGatewayRedis struct {
	client redis.Cmdable
}

func NewIdempotencyGatewayRedis(client redis.Cmdable) *IdempotencyGatewayRedis {
	return &IdempotencyGatewayRedis{client: client}
}

func (c *IdempotencyGatewayRedis) key(idempotencyKey string) string {
	return idempotencyKeyPrefix + idempotencyKey
}

func (c *IdempotencyGatewayRedis) ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*protocols.IdempotencyKeyResult, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	reply, err := claimScript.Run(ctx, c.client, []string{c.key(idempotencyKey)}, statusProcessing, ProcessingLease.Milliseconds()).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("redis claim: %w", err)
	}
	if len(reply) == 0 {
		return nil, nil
	}

	fields := make(map[string]string, len(reply)/2)
	for i := 0; i+1 < len(reply); i += 2 {
		fields[reply[i]] = reply[i+1]
	}
	if fields["status"] != statusSuccess {
		return nil, ErrKeyInProgress
	}
	return parseResultFields(fields)
}

func (c *IdempotencyGatewayRedis) MarkFailure(ctx context.Context, idempotencyKey string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return c.client.Del(ctx, c.key(idempotencyKey)).Err()
}

func (c *IdempotencyGatewayRedis) MarkSuccess(ctx context.Context, idempotencyKey string, result protocols.IdempotencyKeyResult) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	k := c.key(idempotencyKey)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, k, resultFields(result))
		pipe.Expire(ctx, k, SuccessRetention)
		return nil
	})
	return err
}

func resultFields(result protocols.IdempotencyKeyResult) map[string]any {
	return map[string]any{
		"status":        statusSuccess,
		"reservationId": result.ReservationId,
		"courtId":       strconv.Itoa(result.CourtId),
		"timestamp":     result.Timestamp.UTC().Format(time.RFC3339Nano),
		"durationHours": strconv.Itoa(result.DurationHours),
	}
}

func parseResultFields(fields map[string]string) (*protocols.IdempotencyKeyResult, error) {
	courtId, err := strconv.Atoi(fields["courtId"])
	if err != nil {
		return nil, fmt.Errorf("redis courtId: %w", err)
	}
	durationHours, err := strconv.Atoi(fields["durationHours"])
	if err != nil {
		return nil, fmt.Errorf("redis durationHours: %w", err)
	}
	timestamp, err := time.Parse(time.RFC3339Nano, fields["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("redis timestamp: %w", err)
	}
	return &protocols.IdempotencyKeyResult{
		Success:       true,
		ReservationId: fields["reservationId"],
		CourtId:       courtId,
		Timestamp:     timestamp,
		DurationHours: durationHours,
	}, nil
}
