package protocols

import (
	"context"
	"time"
)

type IdempotencyKeyResult struct {
	Success       bool      `json:"success"`
	ReservationId string    `json:"reservationId"`
	CourtId       int       `json:"courtId"`
	Timestamp     time.Time `json:"timestamp"`
	DurationHours int       `json:"durationHours"`
}

type IdempotencyGateway interface {
	ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*IdempotencyKeyResult, error)
	MarkFailure(ctx context.Context, idempotencyKey string) error
	MarkSuccess(ctx context.Context, idempotencyKey string, result IdempotencyKeyResult) error
}
