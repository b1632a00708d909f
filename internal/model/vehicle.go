package model

import "time"

// Vehicle is a physical bus or coach.  Its seats are laid out once and
// reused by every trip the vehicle is assigned to.
type Vehicle struct {
	ID        uint64    // vehicles.id
	Plate     string    // vehicles.plate
	Model     string    // vehicles.model
	Capacity  uint32    // vehicles.capacity
	CreatedAt time.Time // vehicles.created_at
	UpdatedAt time.Time // vehicles.updated_at
}
