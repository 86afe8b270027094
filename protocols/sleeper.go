package protocols

import (
	"context"
	"time"
)

// Sleeper waits between retry attempts. Sleep returns ctx.Err() if ctx ends
// first.
type Sleeper interface {
	Sleep(ctx context.Context, duration time.Duration) error
}
