package lighting

import "github.com/giovaniif/court-booking/domain/reservation"

// Panel holds one light switch per court, all off by default.
type Panel struct {
	lights [reservation.MaxCourts]bool
}

func (p *Panel) Set(courtId int, on bool) error {
	if !reservation.ValidCourt(courtId) {
		return reservation.ErrInvalidCourt
	}
	p.lights[courtId] = on
	return nil
}

func (p *Panel) IsOn(courtId int) (bool, error) {
	if !reservation.ValidCourt(courtId) {
		return false, reservation.ErrInvalidCourt
	}
	return p.lights[courtId], nil
}

func (p *Panel) Len() int {
	return len(p.lights)
}
