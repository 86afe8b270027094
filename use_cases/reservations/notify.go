package reservations

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	protocols "github.com/giovaniif/court-booking/protocols"
)

const publishTimeout = 5 * time.Second

type queuedEvent struct {
	ctx   context.Context
	event protocols.Event
}

// notifier delivers events to every gateway in the order they were enqueued.
// The service enqueues while holding its own lock and delivers after
// releasing it.
type notifier struct {
	gateways []protocols.EventGateway
	logger   *zap.Logger

	queueMu sync.Mutex
	queue   []queuedEvent

	deliverMu sync.Mutex
}

func (n *notifier) enqueue(ctx context.Context, event protocols.Event) {
	if len(n.gateways) == 0 {
		return
	}
	n.queueMu.Lock()
	n.queue = append(n.queue, queuedEvent{ctx: ctx, event: event})
	n.queueMu.Unlock()
}

// deliver publishes everything queued so far. Only one caller delivers at a
// time; an event queued while another caller is delivering may be published
// by that caller.
func (n *notifier) deliver() {
	if len(n.gateways) == 0 {
		return
	}
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	for {
		n.queueMu.Lock()
		batch := n.queue
		n.queue = nil
		n.queueMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, queued := range batch {
			n.publish(queued.ctx, queued.event)
		}
	}
}

// publish outlives a cancelled request while keeping the request's trace.
func (n *notifier) publish(ctx context.Context, event protocols.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	for _, gateway := range n.gateways {
		if err := gateway.Publish(ctx, event); err != nil {
			n.logger.Warn("failed to publish event",
				zap.String("type", event.Type),
				zap.Uint64("sequence", event.Sequence),
				zap.Int("court_id", event.CourtId),
				zap.String("reservation_id", event.ReservationId),
				zap.Error(err),
			)
		}
	}
}
