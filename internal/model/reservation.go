package model

import "time"

// Reservation states.  PENDING is the only state with outgoing
// transitions; CONFIRMED, RELEASED and EXPIRED are terminal.  EXPIRED is a
// release triggered by the payment deadline rather than an explicit
// cancel – the distinction exists only for observability.
const (
	ReservationPending   = "PENDING"
	ReservationConfirmed = "CONFIRMED"
	ReservationReleased  = "RELEASED"
	ReservationExpired   = "EXPIRED"
)

// Reservation represents one attempt to buy a set of seats on a trip.  It
// is born PENDING with a payment deadline and leaves PENDING exactly once,
// through the store's compare-and-set transition.  Whichever caller wins
// that transition (payment confirmation, explicit cancel, or the expiry
// cleanup) performs the corresponding seat-ledger side effects; losers do
// nothing further.
//
// Fields:
//  ID        – primary key identifier.
//  TripID    – trip being reserved.
//  SeatIDs   – seats covered by this reservation (from reservation_seats).
//  Status    – PENDING, CONFIRMED, RELEASED or EXPIRED.
//  ExpiresAt – payment deadline; the expiry task fires at or after it.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type Reservation struct {
	ID        uint64    // reservations.id
	TripID    uint64    // reservations.trip_id
	SeatIDs   []uint64  // reservation_seats.seat_id, ordered
	Status    string    // reservations.status
	ExpiresAt time.Time // reservations.expires_at
	CreatedAt time.Time // reservations.created_at
	UpdatedAt time.Time // reservations.updated_at
}

// Resolved reports whether the reservation has left PENDING.
func (r *Reservation) Resolved() bool {
	return r.Status != ReservationPending
}
