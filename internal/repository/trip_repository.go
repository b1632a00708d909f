package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// TripRepo provides read access to the trips table.  Trip and vehicle
// management is handled by the surrounding CRUD application; the engine
// only needs existence checks and display data.
type TripRepo struct {
	db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the given database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

// GetByID returns the trip with the given identifier, or ErrTripNotFound.
func (r *TripRepo) GetByID(ctx context.Context, id uint64) (*model.Trip, error) {
	var t model.Trip
	var arrives sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, vehicle_id, origin, destination, departs_at, arrives_at, created_at, updated_at
		 FROM trips WHERE id = ?`,
		id,
	).Scan(&t.ID, &t.VehicleID, &t.Origin, &t.Destination, &t.DepartsAt, &arrives,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if arrives.Valid {
		at := arrives.Time
		t.ArrivesAt = &at
	}
	return &t, nil
}
