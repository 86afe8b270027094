package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/giovaniif/court-booking/domain/reservation"
	"github.com/giovaniif/court-booking/infra/gateways"
	"github.com/giovaniif/court-booking/infra/logging"
	"github.com/giovaniif/court-booking/infra/metrics"
	"github.com/giovaniif/court-booking/use_cases/reservations"
)

type ReserveRequest struct {
	CourtId       *int      `json:"courtId" binding:"required"`
	Timestamp     time.Time `json:"timestamp" binding:"required"`
	DurationHours int       `json:"durationHours"`
}

type ReservationResponse struct {
	Id            string    `json:"id"`
	CourtId       int       `json:"courtId"`
	Timestamp     time.Time `json:"timestamp"`
	DurationHours int       `json:"durationHours"`
	Replayed      bool      `json:"replayed,omitempty"`
}

type AvailabilityResponse struct {
	CourtId   int       `json:"courtId"`
	At        time.Time `json:"at"`
	Available bool      `json:"available"`
}

type LightsResponse struct {
	CourtId int  `json:"courtId"`
	On      bool `json:"on"`
}

type HealthCheck func(ctx context.Context) error

type Handler struct {
	service *reservations.Service
	booker  *reservations.IdempotentBook
	checks  map[string]HealthCheck
	logger  *zap.Logger
}

func NewHandler(service *reservations.Service, booker *reservations.IdempotentBook, checks map[string]HealthCheck, logger *zap.Logger) *Handler {
	return &Handler{service: service, booker: booker, checks: checks, logger: logger}
}

func toResponse(r reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		Id:            r.Id(),
		CourtId:       r.CourtId(),
		Timestamp:     r.Timestamp(),
		DurationHours: r.DurationHours(),
	}
}

func (h *Handler) Reserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.booker.Book(c.Request.Context(), reservations.BookInput{
		Reservation:    reservation.New(*req.CourtId, req.Timestamp, req.DurationHours),
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := toResponse(out.Reservation)
	resp.Replayed = out.Replayed
	if out.Replayed {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) List(c *gin.Context) {
	var courtId *int
	if raw := c.Query("courtId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "courtId must be an integer"})
			return
		}
		courtId = &id
	}

	list := h.service.List(courtId)
	resp := make([]ReservationResponse, 0, len(list))
	for _, r := range list {
		resp = append(resp, toResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) CancelFirstOnCourt(c *gin.Context) {
	courtId, ok := courtParam(c)
	if !ok {
		return
	}
	if err := h.service.CancelCourt(c.Request.Context(), courtId); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Availability(c *gin.Context) {
	courtId, ok := courtParam(c)
	if !ok {
		return
	}
	at, err := time.Parse(time.RFC3339, c.Query("at"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at must be an RFC3339 timestamp"})
		return
	}
	c.JSON(http.StatusOK, AvailabilityResponse{
		CourtId:   courtId,
		At:        at,
		Available: h.service.IsAvailable(courtId, at),
	})
}

func (h *Handler) LightsOn(c *gin.Context) {
	h.setLights(c, true)
}

func (h *Handler) LightsOff(c *gin.Context) {
	h.setLights(c, false)
}

func (h *Handler) setLights(c *gin.Context, on bool) {
	courtId, ok := courtParam(c)
	if !ok {
		return
	}
	if err := h.service.SetLighting(c.Request.Context(), courtId, on); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Lights(c *gin.Context) {
	courtId, ok := courtParam(c)
	if !ok {
		return
	}
	on, err := h.service.LightsOn(courtId)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LightsResponse{CourtId: courtId, On: on})
}

func (h *Handler) Health(c *gin.Context) {
	status := "healthy"
	checks := gin.H{}
	for name, check := range h.checks {
		if err := check(c.Request.Context()); err != nil {
			status = "degraded"
			checks[name] = "down"
		} else {
			checks[name] = "up"
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "checks": checks, "conflictPolicy": h.service.Policy()})
}

func courtParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("courtId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "courtId must be an integer"})
		return 0, false
	}
	return id, true
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, reservation.ErrInvalidCourt):
		return http.StatusBadRequest
	case errors.Is(err, reservation.ErrSlotTaken), errors.Is(err, gateways.ErrKeyInProgress):
		return http.StatusConflict
	case errors.Is(err, reservation.ErrReservationNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFromError(err)
	logger := logging.WithContext(c.Request.Context(), h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		metrics.ObserveRejection(err)
		logger.Info("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
