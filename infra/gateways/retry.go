package gateways

import (
	"context"
	"math"
	"time"

	"github.com/giovaniif/court-booking/infra"
	protocols "github.com/giovaniif/court-booking/protocols"
)

var (
	MAX_RETRIES = 3
	BASE_DELAY  = 200 * time.Millisecond
)

type RetryFunc func(ctx context.Context) error

// RetryWithBackoff retries operation while it fails with a retriable error,
// doubling the delay between attempts.
func RetryWithBackoff(operation RetryFunc, sleeper protocols.Sleeper) RetryFunc {
	return func(ctx context.Context) error {
		var lastError error

		for i := 0; i < MAX_RETRIES; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			err := operation(ctx)
			if err == nil {
				return nil
			}
			lastError = err
			if !infra.IsRetriable(err) || i == MAX_RETRIES-1 {
				break
			}

			delay := time.Duration(math.Pow(2, float64(i))) * BASE_DELAY
			if err := sleeper.Sleep(ctx, delay); err != nil {
				return err
			}
		}

		return lastError
	}
}
