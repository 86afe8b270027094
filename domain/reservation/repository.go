package reservation

type Repository interface {
	Add(r Reservation)
	Find(match func(Reservation) bool) (Reservation, bool)
	RemoveFirst(match func(Reservation) bool) (Reservation, bool)
	List() []Reservation
}
