package reservation

import (
	"fmt"
	"time"
)

type ConflictPolicy string

const (
	// ConflictExact rejects only a second reservation starting at the same
	// instant on the same court.
	ConflictExact ConflictPolicy = "exact"
	// ConflictOverlap rejects any reservation whose [start, start+duration)
	// interval intersects an existing one on the same court.
	ConflictOverlap ConflictPolicy = "overlap"
)

func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case ConflictExact, ConflictOverlap:
		return ConflictPolicy(s), nil
	case "":
		return ConflictExact, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

// Collides reports whether candidate cannot coexist with existing.
func (p ConflictPolicy) Collides(existing, candidate Reservation) bool {
	if existing.SameSlot(candidate.CourtId(), candidate.Timestamp()) {
		return true
	}
	return p == ConflictOverlap && existing.Overlaps(candidate.CourtId(), candidate.Timestamp(), candidate.End())
}

// Candidate builds the reservation used to answer availability queries at a given
// instant: a one hour slot.
func Candidate(courtId int, at time.Time) Reservation {
	return New(courtId, at, 1)
}
