package handler

// This file defines the HTTP handlers for the reservation engine's
// collaborator-facing surface: order creation, the payment webhook,
// explicit cancellation and order detail.  The surrounding application
// handles authentication and CRUD; these handlers only translate between
// HTTP and the order lifecycle controller.

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/trip-seat-reservation/internal/repository"
	"github.com/iliyamo/trip-seat-reservation/internal/service"
)

// OrderHandler exposes the order lifecycle controller over HTTP.
type OrderHandler struct {
	Service *service.OrderService
}

// NewOrderHandler constructs an OrderHandler.  The service must be non-nil.
func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	if svc == nil {
		panic("nil service passed to NewOrderHandler")
	}
	return &OrderHandler{Service: svc}
}

// CreateOrder handles POST /v1/orders.  The request body must contain a
// trip id, a non-empty seat_ids array and customer name/email.  On
// success it returns 201 with the order reference and the payment
// deadline.  When any requested seat is already held or sold it returns
// 409 seats_unavailable – the hold is all-or-nothing, so no partial hold
// ever surfaces to the caller.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	var body struct {
		TripID        uint64   `json:"trip_id"`
		SeatIDs       []uint64 `json:"seat_ids"`
		CustomerName  string   `json:"customer_name"`
		CustomerEmail string   `json:"customer_email"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.TripID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "trip_id is required"})
	}
	if len(body.SeatIDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "seat_ids is required"})
	}
	if body.CustomerName == "" || body.CustomerEmail == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name and customer_email are required"})
	}
	ctx := c.Request().Context()
	result, err := h.Service.CreateOrder(ctx, service.CreateOrderInput{
		TripID:        body.TripID,
		SeatIDs:       body.SeatIDs,
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "seats_unavailable"})
		case errors.Is(err, repository.ErrSeatNotFound):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown seat for this trip"})
		case errors.Is(err, repository.ErrTripNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "trip not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":           result.Order.ID,
		"order_reference":    result.Order.Reference,
		"reservation_id":     result.Reservation.ID,
		"seat_ids":           result.Reservation.SeatIDs,
		"total_amount_cents": result.Order.TotalAmountCents,
		"payment_deadline":   result.Reservation.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// ConfirmPayment handles POST /v1/reservations/:id/payment, the callback
// invoked by the external payment collaborator once a charge completes.
// It returns 200 when the reservation is confirmed (including duplicate
// callbacks for an already confirmed reservation) and 410 when the
// payment arrived after the reservation expired or was cancelled – the
// caller must then start a refund.
func (h *OrderHandler) ConfirmPayment(c echo.Context) error {
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		PaymentRef string `json:"payment_ref"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PaymentRef == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment_ref is required"})
	}
	ctx := c.Request().Context()
	res, err := h.Service.ConfirmPayment(ctx, resID, body.PaymentRef)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrReservationExpired):
			return c.JSON(http.StatusGone, echo.Map{"error": "reservation_expired"})
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to confirm payment"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reservation_id": res.ID,
		"status":         res.Status,
		"seat_ids":       res.SeatIDs,
	})
}

// CancelReservation handles DELETE /v1/reservations/:id, the explicit
// user/admin cancellation.  Cancelling a reservation that is already
// confirmed, released or expired is a no-op reporting zero released
// seats, so the endpoint is safely retryable.
func (h *OrderHandler) CancelReservation(c echo.Context) error {
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx := c.Request().Context()
	released, err := h.Service.Cancel(ctx, resID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"released": released,
	})
}

// GetOrder handles GET /v1/orders/:id.  It returns the order together
// with its reservation state, seats and payment deadline.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	orderID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || orderID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()
	order, res, err := h.Service.Order(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) || errors.Is(err, repository.ErrReservationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch order"})
	}
	item := echo.Map{
		"order_id":           order.ID,
		"order_reference":    order.Reference,
		"reservation_id":     res.ID,
		"trip_id":            res.TripID,
		"status":             res.Status,
		"seat_ids":           res.SeatIDs,
		"total_amount_cents": order.TotalAmountCents,
		"customer_name":      order.CustomerName,
		"customer_email":     order.CustomerEmail,
		"payment_deadline":   res.ExpiresAt.UTC().Format(time.RFC3339),
		"created_at":         order.CreatedAt.UTC().Format(time.RFC3339),
	}
	if order.PaymentRef != nil {
		item["payment_ref"] = *order.PaymentRef
	}
	return c.JSON(http.StatusOK, echo.Map{"item": item})
}
