package reservations

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/giovaniif/court-booking/domain/reservation"
	protocols "github.com/giovaniif/court-booking/protocols"
)

type Booker interface {
	Book(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error)
}

// IdempotentBook makes a booking safe to retry: a key that already succeeded
// replays the reservation it produced instead of booking again.
type IdempotentBook struct {
	booker             Booker
	idempotencyGateway protocols.IdempotencyGateway
	logger             *zap.Logger
}

const markTimeout = 5 * time.Second

func NewIdempotentBook(booker Booker, idempotencyGateway protocols.IdempotencyGateway, logger *zap.Logger) *IdempotentBook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdempotentBook{
		booker:             booker,
		idempotencyGateway: idempotencyGateway,
		logger:             logger,
	}
}

type BookInput struct {
	Reservation    reservation.Reservation
	IdempotencyKey string
}

type BookOutput struct {
	Reservation reservation.Reservation
	Replayed    bool
}

func (b *IdempotentBook) Book(ctx context.Context, input BookInput) (BookOutput, error) {
	if input.IdempotencyKey == "" {
		booked, err := b.booker.Book(ctx, input.Reservation)
		return BookOutput{Reservation: booked}, err
	}

	result, err := b.idempotencyGateway.ReserveIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return BookOutput{}, err
	}
	if result != nil {
		replayed := reservation.New(result.CourtId, result.Timestamp, result.DurationHours).WithId(result.ReservationId)
		return BookOutput{Reservation: replayed, Replayed: true}, nil
	}

	var booked reservation.Reservation
	success := false
	defer func() {
		// the booking outcome is final even if the caller went away
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
		defer cancel()

		var markErr error
		if success {
			markErr = b.idempotencyGateway.MarkSuccess(markCtx, input.IdempotencyKey, protocols.IdempotencyKeyResult{
				Success:       true,
				ReservationId: booked.Id(),
				CourtId:       booked.CourtId(),
				Timestamp:     booked.Timestamp(),
				DurationHours: booked.DurationHours(),
			})
		} else {
			markErr = b.idempotencyGateway.MarkFailure(markCtx, input.IdempotencyKey)
		}
		if markErr != nil {
			b.logger.Error("failed to record idempotency outcome",
				zap.String("idempotency_key", input.IdempotencyKey),
				zap.Bool("success", success),
				zap.Error(markErr),
			)
		}
	}()

	booked, err = b.booker.Book(ctx, input.Reservation)
	if err != nil {
		return BookOutput{}, err
	}

	success = true
	return BookOutput{Reservation: booked}, nil
}
