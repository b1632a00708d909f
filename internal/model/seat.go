package model

import "time"

// Seat describes a physical seat in a vehicle.  Seats are uniquely
// identified by their vehicle, row label and seat number.
//
// Fields:
//  ID         – primary key identifier.
//  VehicleID  – vehicle to which this seat belongs.
//  RowLabel   – letter or string designating the row.
//  SeatNumber – number of the seat within the row.
//  IsActive   – whether the seat is sellable.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    // seats.id
	VehicleID  uint64    // seats.vehicle_id
	RowLabel   string    // seats.row_label
	SeatNumber uint32    // seats.seat_number
	IsActive   bool      // seats.is_active
	CreatedAt  time.Time // seats.created_at
	UpdatedAt  time.Time // seats.updated_at
}
