package gateways

import (
	"context"
	"time"
)

type Sleeper struct{}

func NewSleeper() *Sleeper {
	return &Sleeper{}
}

func (s *Sleeper) Sleep(ctx context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
