package repositories

import (
	"github.com/giovaniif/court-booking/domain/reservation"
)

// ReservationRepositoryMemory keeps reservations in insertion order. It does
// no locking of its own; the reservations service serialises access.
type ReservationRepositoryMemory struct {
	reservations []reservation.Reservation
}

func NewReservationRepositoryMemory() *ReservationRepositoryMemory {
	return &ReservationRepositoryMemory{}
}

func (r *ReservationRepositoryMemory) Add(res reservation.Reservation) {
	r.reservations = append(r.reservations, res)
}

func (r *ReservationRepositoryMemory) Find(match func(reservation.Reservation) bool) (reservation.Reservation, bool) {
	for _, res := range r.reservations {
		if match(res) {
			return res, true
		}
	}
	return reservation.Reservation{}, false
}

func (r *ReservationRepositoryMemory) RemoveFirst(match func(reservation.Reservation) bool) (reservation.Reservation, bool) {
	for i, res := range r.reservations {
		if match(res) {
			r.reservations = append(r.reservations[:i], r.reservations[i+1:]...)
			return res, true
		}
	}
	return reservation.Reservation{}, false
}

func (r *ReservationRepositoryMemory) List() []reservation.Reservation {
	out := make([]reservation.Reservation, len(r.reservations))
	copy(out, r.reservations)
	return out
}
