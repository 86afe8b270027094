package reservations

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/giovaniif/court-booking/domain/lighting"
	"github.com/giovaniif/court-booking/domain/reservation"
	protocols "github.com/giovaniif/court-booking/protocols"
)

const tracerName = "reservations"

// Service owns every accepted reservation and the lighting panel. A single
// mutex guards both, and every mutation gets the next event sequence number
// under it.
type Service struct {
	mu         sync.Mutex
	repository reservation.Repository
	lighting   lighting.Panel
	policy     reservation.ConflictPolicy
	sequence   uint64
	notifier   *notifier
	now        func() time.Time
	newId      func() string
}

type Option func(*Service)

func WithConflictPolicy(policy reservation.ConflictPolicy) Option {
	return func(s *Service) { s.policy = policy }
}

// WithEventGateways registers gateways notified after every successful
// mutation. Their failures are logged and never undo the mutation.
func WithEventGateways(gateways ...protocols.EventGateway) Option {
	return func(s *Service) { s.notifier.gateways = append(s.notifier.gateways, gateways...) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.notifier.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIdGenerator(newId func() string) Option {
	return func(s *Service) { s.newId = newId }
}

func NewService(repository reservation.Repository, opts ...Option) *Service {
	s := &Service{
		repository: repository,
		policy:     reservation.ConflictExact,
		notifier:   &notifier{logger: zap.NewNop()},
		now:        time.Now,
		newId:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Policy() reservation.ConflictPolicy {
	return s.policy
}

// Book stores r under a fresh id. It fails with ErrInvalidCourt for a court
// outside [0, MaxCourts) and with ErrSlotTaken when r collides with a stored
// reservation under the configured policy.
func (s *Service) Book(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reservations.Book")
	defer span.End()
	span.SetAttributes(attribute.Int("court.id", r.CourtId()))

	if !reservation.ValidCourt(r.CourtId()) {
		return reservation.Reservation{}, fail(span, reservation.ErrInvalidCourt)
	}

	s.mu.Lock()
	_, taken := s.repository.Find(func(existing reservation.Reservation) bool {
		return s.policy.Collides(existing, r)
	})
	if taken {
		s.mu.Unlock()
		return reservation.Reservation{}, fail(span, reservation.ErrSlotTaken)
	}
	booked := r.WithId(s.newId())
	s.repository.Add(booked)
	s.record(ctx, reservationEvent(protocols.EventReservationBooked, booked))
	s.mu.Unlock()

	span.SetAttributes(attribute.String("reservation.id", booked.Id()))
	s.notifier.deliver()
	return booked, nil
}

// Cancel removes the reservation with the given id.
func (s *Service) Cancel(ctx context.Context, reservationId string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reservations.Cancel")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", reservationId))

	s.mu.Lock()
	removed, ok := s.repository.RemoveFirst(func(r reservation.Reservation) bool {
		return r.Id() == reservationId
	})
	if !ok {
		s.mu.Unlock()
		return fail(span, reservation.ErrReservationNotFound)
	}
	s.record(ctx, reservationEvent(protocols.EventReservationCancelled, removed))
	s.mu.Unlock()

	s.notifier.deliver()
	return nil
}

// CancelCourt removes the earliest inserted reservation on courtId, whatever
// its time. Later reservations on the same court are kept.
func (s *Service) CancelCourt(ctx context.Context, courtId int) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reservations.CancelCourt")
	defer span.End()
	span.SetAttributes(attribute.Int("court.id", courtId))

	s.mu.Lock()
	removed, ok := s.repository.RemoveFirst(func(r reservation.Reservation) bool {
		return r.CourtId() == courtId
	})
	if !ok {
		s.mu.Unlock()
		return fail(span, reservation.ErrReservationNotFound)
	}
	s.record(ctx, reservationEvent(protocols.EventReservationCancelled, removed))
	s.mu.Unlock()

	s.notifier.deliver()
	return nil
}

func (s *Service) SetLighting(ctx context.Context, courtId int, on bool) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reservations.SetLighting")
	defer span.End()
	span.SetAttributes(attribute.Int("court.id", courtId), attribute.Bool("lights.on", on))

	s.mu.Lock()
	if err := s.lighting.Set(courtId, on); err != nil {
		s.mu.Unlock()
		return fail(span, err)
	}
	s.record(ctx, protocols.Event{
		Type:     protocols.EventLightingChanged,
		CourtId:  courtId,
		LightsOn: on,
	})
	s.mu.Unlock()

	s.notifier.deliver()
	return nil
}

func (s *Service) TurnOnLights(ctx context.Context, courtId int) error {
	return s.SetLighting(ctx, courtId, true)
}

func (s *Service) TurnOffLights(ctx context.Context, courtId int) error {
	return s.SetLighting(ctx, courtId, false)
}

func (s *Service) LightsOn(courtId int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lighting.IsOn(courtId)
}

// IsAvailable reports whether a one hour reservation starting at "at" could be
// booked on courtId right now. Invalid courts are never available.
func (s *Service) IsAvailable(courtId int, at time.Time) bool {
	if !reservation.ValidCourt(courtId) {
		return false
	}
	candidate := reservation.Candidate(courtId, at)

	s.mu.Lock()
	defer s.mu.Unlock()
	_, taken := s.repository.Find(func(existing reservation.Reservation) bool {
		return s.policy.Collides(existing, candidate)
	})
	return !taken
}

// List returns reservations in booking order. A nil courtId lists every court.
func (s *Service) List(courtId *int) []reservation.Reservation {
	s.mu.Lock()
	all := s.repository.List()
	s.mu.Unlock()

	if courtId == nil {
		return all
	}
	out := make([]reservation.Reservation, 0, len(all))
	for _, r := range all {
		if r.CourtId() == *courtId {
			out = append(out, r)
		}
	}
	return out
}

// record stamps event with the next sequence number and queues it. Callers
// hold s.mu, so queue order is the order mutations were applied in.
func (s *Service) record(ctx context.Context, event protocols.Event) {
	s.sequence++
	event.Sequence = s.sequence
	event.OccurredAt = s.now()
	s.notifier.enqueue(ctx, event)
}

func reservationEvent(eventType string, r reservation.Reservation) protocols.Event {
	return protocols.Event{
		Type:          eventType,
		ReservationId: r.Id(),
		CourtId:       r.CourtId(),
		Timestamp:     r.Timestamp(),
		DurationHours: r.DurationHours(),
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
