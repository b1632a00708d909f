package model

import "time"

// Seat states tracked by the ledger.  A seat only ever moves
// AVAILABLE → HELD → SOLD or AVAILABLE → HELD → AVAILABLE; there is no
// transition out of SOLD.
const (
	SeatAvailable = "AVAILABLE"
	SeatHeld      = "HELD"
	SeatSold      = "SOLD"
)

// TripSeat is the ledger row for one seat on one trip.  It is the durable
// source of truth for whether the seat can be sold.  While a seat is HELD
// or SOLD, ReservationID records the single reservation that owns it; the
// column is cleared when the hold is released.  Status and ReservationID
// are mutated exclusively through conditional UPDATEs in the repository –
// never by reading and writing back.
//
// Fields:
//  ID            – primary key identifier.
//  TripID        – trip this row belongs to.
//  SeatID        – physical seat.
//  Status        – AVAILABLE, HELD or SOLD.
//  PriceCents    – price of this seat on this trip.
//  ReservationID – owning reservation while HELD or SOLD (nullable).
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type TripSeat struct {
	ID            uint64    // trip_seats.id
	TripID        uint64    // trip_seats.trip_id
	SeatID        uint64    // trip_seats.seat_id
	Status        string    // trip_seats.status
	PriceCents    uint32    // trip_seats.price_cents
	ReservationID *uint64   // trip_seats.reservation_id (nullable)
	CreatedAt     time.Time // trip_seats.created_at
	UpdatedAt     time.Time // trip_seats.updated_at
}
