package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// TripHandler exposes read-only trip data consumed by browsing clients
// before they start a checkout.  Seat availability is derived from the
// ledger, so HELD seats show as such until their hold expires or is
// released.
type TripHandler struct {
	TripRepo     *repository.TripRepo     // access to trips for existence checks and detail
	TripSeatRepo *repository.TripSeatRepo // access to the seat ledger for availability
}

// NewTripHandler constructs a TripHandler.  All dependencies must be non-nil.
func NewTripHandler(tripRepo *repository.TripRepo, tripSeatRepo *repository.TripSeatRepo) *TripHandler {
	if tripRepo == nil || tripSeatRepo == nil {
		panic("nil repository passed to NewTripHandler")
	}
	return &TripHandler{TripRepo: tripRepo, TripSeatRepo: tripSeatRepo}
}

// GetTripSeats handles GET /v1/trips/:id/seats.  It returns every seat of
// the trip with its row label, number, price and current ledger status
// (AVAILABLE, HELD or SOLD).  The response is served through the Redis
// response cache middleware; a short TTL keeps the listing fresh enough
// for seat pickers without hammering the ledger.
func (h *TripHandler) GetTripSeats(c echo.Context) error {
	tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || tripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
	}
	ctx := c.Request().Context()
	trip, err := h.TripRepo.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrTripNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	seats, err := h.TripSeatRepo.ListByTrip(ctx, tripID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load seats"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"trip_id":     trip.ID,
		"origin":      trip.Origin,
		"destination": trip.Destination,
		"departs_at":  trip.DepartsAt.UTC().Format(time.RFC3339),
		"seats":       seats,
		"count":       len(seats),
	})
}
