package metrics

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/giovaniif/court-booking/domain/reservation"
	protocols "github.com/giovaniif/court-booking/protocols"
)

var (
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	BookedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "court_reservations_booked_total",
			Help: "Total number of accepted reservations",
		},
	)
	CancelledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "court_reservations_cancelled_total",
			Help: "Total number of cancelled reservations",
		},
	)
	RejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "court_reservations_rejected_total",
			Help: "Total number of rejected reservation operations by reason",
		},
		[]string{"reason"},
	)
	ActiveReservations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "court_reservations_active",
			Help: "Number of reservations currently held",
		},
	)
	LightsOn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "court_lights_on",
			Help: "1 when the lights of a court are on",
		},
		[]string{"court"},
	)
)

// NormalizePath uses the gin route template so that ids do not explode label
// cardinality.
func NormalizePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

func Middleware(c *gin.Context) {
	if c.Request.URL.Path == "/metrics" {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()
	duration := time.Since(start).Seconds()
	path := NormalizePath(c)
	status := strconv.Itoa(c.Writer.Status())
	RequestTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	RequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
}

func RejectionReason(err error) string {
	switch {
	case errors.Is(err, reservation.ErrInvalidCourt):
		return "invalid_court"
	case errors.Is(err, reservation.ErrSlotTaken):
		return "slot_taken"
	case errors.Is(err, reservation.ErrReservationNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func ObserveRejection(err error) {
	RejectedTotal.WithLabelValues(RejectionReason(err)).Inc()
}

// Recorder turns service events into domain metrics. A lighting event older
// than the last one applied for its court is ignored.
type Recorder struct {
	mu       sync.Mutex
	lighting map[int]uint64
}

func NewRecorder() *Recorder {
	return &Recorder{lighting: make(map[int]uint64)}
}

func (r *Recorder) Publish(ctx context.Context, event protocols.Event) error {
	switch event.Type {
	case protocols.EventReservationBooked:
		BookedTotal.Inc()
		ActiveReservations.Inc()
	case protocols.EventReservationCancelled:
		CancelledTotal.Inc()
		ActiveReservations.Dec()
	case protocols.EventLightingChanged:
		r.mu.Lock()
		defer r.mu.Unlock()
		if last, ok := r.lighting[event.CourtId]; ok && event.Sequence < last {
			return nil
		}
		r.lighting[event.CourtId] = event.Sequence
		value := 0.0
		if event.LightsOn {
			value = 1
		}
		LightsOn.WithLabelValues(strconv.Itoa(event.CourtId)).Set(value)
	}
	return nil
}
