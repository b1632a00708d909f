// Package queue defines message payloads exchanged over the message broker
// and the background consumer for operational events.
package queue

// Queue names.  All queues are durable and messages are persistent.
const (
	OrderConfirmedQueue      = "order.confirmed"
	ReservationReleasedQueue = "reservation.released"
	CleanupDeadQueue         = "cleanup.dead"
)

// OrderConfirmedEvent is published when a payment lands inside the window
// and the reservation is confirmed.  It contains enough information for
// downstream consumers to notify or reconcile without querying the
// primary database.
type OrderConfirmedEvent struct {
	OrderID          uint64   `json:"order_id"`
	OrderReference   string   `json:"order_reference"`
	ReservationID    uint64   `json:"reservation_id"`
	TripID           uint64   `json:"trip_id"`
	SeatIDs          []uint64 `json:"seat_ids"`
	TotalAmountCents uint32   `json:"total_amount_cents"`
	PaymentRef       string   `json:"payment_ref"`
	ConfirmedAt      string   `json:"confirmed_at"`
}

// ReservationReleasedEvent is published whenever seats go back to
// AVAILABLE, whether by explicit cancel or by the expiry cleanup.  Reason
// distinguishes the two triggers ("cancelled" or "expired") for
// observability; the external payment collaborator uses the expired case
// to start refund workflows for late captures.
type ReservationReleasedEvent struct {
	ReservationID uint64   `json:"reservation_id"`
	TripID        uint64   `json:"trip_id"`
	SeatIDs       []uint64 `json:"seat_ids"`
	SeatsReleased int      `json:"seats_released"`
	Reason        string   `json:"reason"`
	ReleasedAt    string   `json:"released_at"`
}

// CleanupDeadEvent is published when an expiry task exhausts its retry
// budget.  It implies seats may be stuck HELD and requires operator
// attention; it must never be dropped silently.
type CleanupDeadEvent struct {
	TaskID        uint64 `json:"task_id"`
	ReservationID uint64 `json:"reservation_id"`
	Attempts      uint32 `json:"attempts"`
	LastError     string `json:"last_error"`
	EscalatedAt   string `json:"escalated_at"`
}
