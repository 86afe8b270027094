package gateways

import (
	"context"
	"errors"
	"sync"
	"time"

	protocols "github.com/giovaniif/court-booking/protocols"
)

const (
	statusProcessing = "processing"
	statusSuccess    = "success"

	// A key stays claimed for at most ProcessingLease while its booking runs,
	// and a finished booking can be replayed for SuccessRetention.
	ProcessingLease  = 30 * time.Second
	SuccessRetention = 24 * time.Hour
)

var ErrKeyInProgress = errors.New("idempotency key is already being processed")

type IdempotencyGatewayMemory struct {
	mutex           sync.Mutex
	idempotencyKeys map[string]*idempotencyEntry
	now             func() time.Time
}

type idempotencyEntry struct {
	status    string
	result    protocols.IdempotencyKeyResult
	expiresAt time.Time
}

func NewIdempotencyGatewayMemory() *IdempotencyGatewayMemory {
	return newIdempotencyGatewayMemory(time.Now)
}

func newIdempotencyGatewayMemory(now func() time.Time) *IdempotencyGatewayMemory {
	return &IdempotencyGatewayMemory{
		idempotencyKeys: make(map[string]*idempotencyEntry),
		now:             now,
	}
}

func (c *IdempotencyGatewayMemory) ReserveIdempotencyKey(ctx context.Context, idempotencyKey string) (*protocols.IdempotencyKeyResult, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	if entry, exists := c.idempotencyKeys[idempotencyKey]; exists && now.Before(entry.expiresAt) {
		if entry.status == statusSuccess {
			result := entry.result
			return &result, nil
		}
		return nil, ErrKeyInProgress
	}

	c.idempotencyKeys[idempotencyKey] = &idempotencyEntry{
		status:    statusProcessing,
		expiresAt: now.Add(ProcessingLease),
	}
	return nil, nil
}

func (c *IdempotencyGatewayMemory) MarkFailure(ctx context.Context, idempotencyKey string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.idempotencyKeys, idempotencyKey)
	return nil
}

func (c *IdempotencyGatewayMemory) MarkSuccess(ctx context.Context, idempotencyKey string, result protocols.IdempotencyKeyResult) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.idempotencyKeys[idempotencyKey] = &idempotencyEntry{
		status:    statusSuccess,
		result:    result,
		expiresAt: c.now().Add(SuccessRetention),
	}
	return nil
}
