package protocols

import (
	"context"
	"time"
)

const (
	EventReservationBooked    = "reservation.booked"
	EventReservationCancelled = "reservation.cancelled"
	EventLightingChanged      = "lighting.changed"
)

// Event describes one applied mutation. Sequence increases by one per
// mutation across the whole service, so consumers can discard stale events.
type Event struct {
	Sequence      uint64    `json:"sequence"`
	Type          string    `json:"type"`
	ReservationId string    `json:"reservationId,omitempty"`
	CourtId       int       `json:"courtId"`
	Timestamp     time.Time `json:"timestamp"`
	DurationHours int       `json:"durationHours,omitempty"`
	LightsOn      bool      `json:"lightsOn"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type EventGateway interface {
	Publish(ctx context.Context, event Event) error
}
