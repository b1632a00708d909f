// Package service implements the reservation engine's state machine: the
// order lifecycle controller that creates holds and resolves them on
// payment or cancel, and the cleanup worker that resolves them on expiry.
// Both receive their stores and publisher as explicit dependencies; the
// package holds no process-wide state.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// ErrReservationExpired is returned by ConfirmPayment when the payment
// arrived after the reservation was already released or expired.  The
// payment succeeded too late; the caller must trigger a refund workflow
// in the external payment collaborator.
var ErrReservationExpired = errors.New("reservation expired")

// SeatLedger is the durable source of truth for seat state per trip.
// Hold is all-or-nothing; Release is idempotent.  Implementations must
// make these true atomic operations against the store (conditional
// updates), never read-then-write.
type SeatLedger interface {
	Hold(ctx context.Context, tripID uint64, seatIDs []uint64, reservationID uint64) error
	Confirm(ctx context.Context, reservationID uint64) error
	Release(ctx context.Context, reservationID uint64) (int, error)
	Quote(ctx context.Context, tripID uint64, seatIDs []uint64) (uint32, error)
}

// ReservationStore persists reservations.  Transition is a compare-and-set
// and the sole mutation path; it returns repository.ErrStaleState when the
// current state does not match from.
type ReservationStore interface {
	Create(ctx context.Context, tripID uint64, seatIDs []uint64, expiresAt time.Time) (*model.Reservation, error)
	Get(ctx context.Context, id uint64) (*model.Reservation, error)
	Transition(ctx context.Context, id uint64, from, to string) error
}

// OrderStore persists the customer-facing order aggregates.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uint64) (*model.Order, error)
	GetByReservation(ctx context.Context, reservationID uint64) (*model.Order, error)
	SetPaymentRefByReservation(ctx context.Context, reservationID uint64, paymentRef string) error
}

// ExpiryScheduler schedules and cancels the durable cleanup task for a
// reservation.  Cancel racing with a concurrent firing must be safe.
type ExpiryScheduler interface {
	Schedule(ctx context.Context, reservationID uint64, fireAt time.Time) error
	Cancel(ctx context.Context, reservationID uint64) error
}

// EventPublisher emits engine outcomes to the message broker.  Publishing
// is best-effort: implementations log failures and the engine never lets
// a publish error fail a booking operation.
type EventPublisher interface {
	PublishOrderConfirmed(ctx context.Context, event queue.OrderConfirmedEvent) error
	PublishReservationReleased(ctx context.Context, event queue.ReservationReleasedEvent) error
}

// OrderService is the order lifecycle controller.  It owns every
// transition a reservation makes: Created → PENDING (seats held) →
// CONFIRMED or RELEASED/EXPIRED.  Correctness under concurrency rests on
// two atomic primitives it never bypasses: the ledger's all-or-nothing
// hold (a mutex keyed by seat) and the store's compare-and-set transition
// (a mutex keyed by reservation state).
type OrderService struct {
	ledger        SeatLedger
	reservations  ReservationStore
	orders        OrderStore
	scheduler     ExpiryScheduler
	events        EventPublisher
	paymentWindow time.Duration
	now           func() time.Time
}

// NewOrderService constructs an OrderService.  All dependencies must be
// non-nil; paymentWindow is the fixed duration a customer has to pay.
func NewOrderService(ledger SeatLedger, reservations ReservationStore, orders OrderStore, scheduler ExpiryScheduler, events EventPublisher, paymentWindow time.Duration) *OrderService {
	if ledger == nil || reservations == nil || orders == nil || scheduler == nil || events == nil {
		panic("nil dependency passed to NewOrderService")
	}
	if paymentWindow <= 0 {
		paymentWindow = 15 * time.Minute
	}
	return &OrderService{
		ledger:        ledger,
		reservations:  reservations,
		orders:        orders,
		scheduler:     scheduler,
		events:        events,
		paymentWindow: paymentWindow,
		now:           time.Now,
	}
}

// CreateOrderInput carries a checkout request from the surrounding layer.
type CreateOrderInput struct {
	TripID        uint64
	SeatIDs       []uint64
	CustomerName  string
	CustomerEmail string
}

// CreateOrderResult is returned to the caller on success.
type CreateOrderResult struct {
	Order       *model.Order
	Reservation *model.Reservation
}

// CreateOrder starts a checkout: it creates a PENDING reservation with a
// payment deadline, persists the customer order, schedules the durable
// expiry task and finally holds the seats.  The ordering matters for
// crash safety – the task is durable before any seat is held, so no crash
// window can leave seats HELD without a cleanup task; at worst a crash
// leaves a seatless PENDING reservation whose task fires and releases
// nothing.  On hold contention the reservation is resolved RELEASED, the
// task cancelled, and repository.ErrSeatUnavailable returned with no
// partial holds visible to the caller.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	seatIDs := dedupeSeatIDs(in.SeatIDs)
	if len(seatIDs) == 0 {
		return nil, repository.ErrSeatNotFound
	}
	total, err := s.ledger.Quote(ctx, in.TripID, seatIDs)
	if err != nil {
		return nil, err
	}
	deadline := s.now().UTC().Add(s.paymentWindow)
	res, err := s.reservations.Create(ctx, in.TripID, seatIDs, deadline)
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	order := &model.Order{
		Reference:        uuid.NewString(),
		ReservationID:    res.ID,
		CustomerName:     in.CustomerName,
		CustomerEmail:    in.CustomerEmail,
		TotalAmountCents: total,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if err := s.scheduler.Schedule(ctx, res.ID, res.ExpiresAt); err != nil {
		return nil, fmt.Errorf("schedule expiry: %w", err)
	}
	if err := s.ledger.Hold(ctx, in.TripID, seatIDs, res.ID); err != nil {
		// No seat changed state; resolve the reservation so the task does
		// not have to.  Both calls lose races safely.
		if casErr := s.reservations.Transition(ctx, res.ID, model.ReservationPending, model.ReservationReleased); casErr != nil && !errors.Is(casErr, repository.ErrStaleState) {
			log.Printf("order-service: resolve reservation %d after failed hold: %v", res.ID, casErr)
		}
		if cancelErr := s.scheduler.Cancel(ctx, res.ID); cancelErr != nil {
			log.Printf("order-service: cancel expiry task for reservation %d: %v", res.ID, cancelErr)
		}
		return nil, err
	}
	res.Status = model.ReservationPending
	return &CreateOrderResult{Order: order, Reservation: res}, nil
}

// ConfirmPayment resolves a reservation as paid.  The compare-and-set
// PENDING→CONFIRMED decides the race against expiry and cancel; only the
// winner touches the ledger.  A lost CAS against an already CONFIRMED
// reservation is treated as a duplicate webhook and reported as success;
// any other lost CAS returns ErrReservationExpired so the caller can
// start a refund.
func (s *OrderService) ConfirmPayment(ctx context.Context, reservationID uint64, paymentRef string) (*model.Reservation, error) {
	err := s.reservations.Transition(ctx, reservationID, model.ReservationPending, model.ReservationConfirmed)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			res, getErr := s.reservations.Get(ctx, reservationID)
			if getErr != nil {
				return nil, getErr
			}
			if res.Status == model.ReservationConfirmed {
				return res, nil
			}
			return nil, ErrReservationExpired
		}
		return nil, err
	}
	// CAS won: from here on no other path will touch these seats.
	if err := s.ledger.Confirm(ctx, reservationID); err != nil {
		// The ledger disagreeing with a won CAS is an invariant breach,
		// not a race; surface it loudly.
		return nil, fmt.Errorf("confirm seats for reservation %d: %w", reservationID, err)
	}
	if err := s.orders.SetPaymentRefByReservation(ctx, reservationID, paymentRef); err != nil {
		log.Printf("order-service: record payment ref for reservation %d: %v", reservationID, err)
	}
	// Cancel is best-effort: a task that fires anyway loses the CAS and
	// no-ops.
	if err := s.scheduler.Cancel(ctx, reservationID); err != nil {
		log.Printf("order-service: cancel expiry task for reservation %d: %v", reservationID, err)
	}
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	s.publishConfirmed(ctx, res, paymentRef)
	return res, nil
}

// Cancel releases a PENDING reservation on explicit user or admin action.
// When the reservation is already resolved the call is an idempotent
// no-op reporting zero released seats.
func (s *OrderService) Cancel(ctx context.Context, reservationID uint64) (int, error) {
	err := s.reservations.Transition(ctx, reservationID, model.ReservationPending, model.ReservationReleased)
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return 0, nil
		}
		return 0, err
	}
	released, err := s.ledger.Release(ctx, reservationID)
	if err != nil {
		return 0, fmt.Errorf("release seats for reservation %d: %w", reservationID, err)
	}
	if err := s.scheduler.Cancel(ctx, reservationID); err != nil {
		log.Printf("order-service: cancel expiry task for reservation %d: %v", reservationID, err)
	}
	s.publishReleased(ctx, reservationID, released, "cancelled")
	return released, nil
}

// Order returns the order with its reservation for the detail endpoint.
func (s *OrderService) Order(ctx context.Context, orderID uint64) (*model.Order, *model.Reservation, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.reservations.Get(ctx, order.ReservationID)
	if err != nil {
		return nil, nil, err
	}
	return order, res, nil
}

// Reservation returns the reservation with the given id.
func (s *OrderService) Reservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.reservations.Get(ctx, id)
}

func (s *OrderService) publishConfirmed(ctx context.Context, res *model.Reservation, paymentRef string) {
	order, err := s.orders.GetByReservation(ctx, res.ID)
	if err != nil {
		log.Printf("order-service: load order for confirmed reservation %d: %v", res.ID, err)
		return
	}
	ev := queue.OrderConfirmedEvent{
		OrderID:          order.ID,
		OrderReference:   order.Reference,
		ReservationID:    res.ID,
		TripID:           res.TripID,
		SeatIDs:          res.SeatIDs,
		TotalAmountCents: order.TotalAmountCents,
		PaymentRef:       paymentRef,
		ConfirmedAt:      s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishOrderConfirmed(ctx, ev); err != nil {
		log.Printf("order-service: publish order.confirmed for reservation %d: %v", res.ID, err)
	}
}

func (s *OrderService) publishReleased(ctx context.Context, reservationID uint64, released int, reason string) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		log.Printf("order-service: load released reservation %d: %v", reservationID, err)
		return
	}
	ev := queue.ReservationReleasedEvent{
		ReservationID: reservationID,
		TripID:        res.TripID,
		SeatIDs:       res.SeatIDs,
		SeatsReleased: released,
		Reason:        reason,
		ReleasedAt:    s.now().UTC().Format(time.RFC3339),
	}
	if err := s.events.PublishReservationReleased(ctx, ev); err != nil {
		log.Printf("order-service: publish reservation.released for reservation %d: %v", reservationID, err)
	}
}

// dedupeSeatIDs drops zero and repeated seat IDs while preserving order.
func dedupeSeatIDs(ids []uint64) []uint64 {
	unique := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			unique = append(unique, id)
		}
	}
	return unique
}
