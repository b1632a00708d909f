package model

import "time"

// Trip is one scheduled occurrence of a vehicle travelling a route.  Every
// seat of the assigned vehicle has a corresponding TripSeat row tracking
// its sale state for this occurrence.
//
// Fields:
//  ID          – primary key identifier.
//  VehicleID   – vehicle assigned to this trip.
//  Origin      – departure location.
//  Destination – arrival location.
//  DepartsAt   – scheduled departure time.
//  ArrivesAt   – scheduled arrival time, if known.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Trip struct {
	ID          uint64     // trips.id
	VehicleID   uint64     // trips.vehicle_id
	Origin      string     // trips.origin
	Destination string     // trips.destination
	DepartsAt   time.Time  // trips.departs_at
	ArrivesAt   *time.Time // trips.arrives_at (nullable)
	CreatedAt   time.Time  // trips.created_at
	UpdatedAt   time.Time  // trips.updated_at
}
