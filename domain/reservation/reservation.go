package reservation

import (
	"errors"
	"time"
)

const MaxCourts = 10

var (
	ErrInvalidCourt        = errors.New("invalid court id")
	ErrSlotTaken           = errors.New("court already reserved at that time")
	ErrReservationNotFound = errors.New("reservation not found")
)

// Reservation is a booked usage of one court. It is never mutated once built;
// WithId returns a copy.
type Reservation struct {
	id            string
	courtId       int
	timestamp     time.Time
	durationHours int
}

func New(courtId int, timestamp time.Time, durationHours int) Reservation {
	return Reservation{
		courtId:       courtId,
		timestamp:     timestamp,
		durationHours: durationHours,
	}
}

func (r Reservation) WithId(id string) Reservation {
	r.id = id
	return r
}

func (r Reservation) Id() string { return r.id }

func (r Reservation) CourtId() int { return r.courtId }

func (r Reservation) Timestamp() time.Time { return r.timestamp }

func (r Reservation) DurationHours() int { return r.durationHours }

// End is the exclusive end of the reservation interval.
func (r Reservation) End() time.Time {
	return r.timestamp.Add(time.Duration(r.durationHours) * time.Hour)
}

// SameSlot reports whether both reservations hold the same court at exactly
// the same instant. Duration is ignored.
func (r Reservation) SameSlot(courtId int, at time.Time) bool {
	return r.courtId == courtId && r.timestamp.Equal(at)
}

// Overlaps reports whether [start, end) intersects the reservation interval on
// the same court. An empty or inverted interval on either side counts as the
// single instant at its start.
func (r Reservation) Overlaps(courtId int, start, end time.Time) bool {
	if r.courtId != courtId {
		return false
	}
	end = occupiedEnd(start, end)
	return start.Before(occupiedEnd(r.timestamp, r.End())) && end.After(r.timestamp)
}

func occupiedEnd(start, end time.Time) time.Time {
	if end.After(start) {
		return end
	}
	return start.Add(time.Nanosecond)
}

func ValidCourt(courtId int) bool {
	return courtId >= 0 && courtId < MaxCourts
}
