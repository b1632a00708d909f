package repository

import (
	"context"
	"database/sql"
	"strings"
)

// TripSeatRepo is the seat ledger: data access to the trip_seats table,
// the durable source of truth for seat state per trip.  All state changes
// go through conditional UPDATEs whose rows-affected counts are checked
// against expectations, so two concurrent writers can never both succeed
// for the same seat.  All timestamps are UTC.
type TripSeatRepo struct {
	db *sql.DB
}

// NewTripSeatRepo returns a new TripSeatRepo bound to the provided database.
func NewTripSeatRepo(db *sql.DB) *TripSeatRepo { return &TripSeatRepo{db: db} }

// placeholders returns a comma-separated list of n "?" markers for use in
// IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// Hold atomically marks every seat in seatIDs as HELD by reservationID,
// provided all of them are currently AVAILABLE on the trip.  The update is
// all-or-nothing: when any seat is already held or sold, the transaction
// is rolled back and ErrSeatUnavailable is returned with no seat changed.
// Concurrent holds on overlapping seat sets are serialised by InnoDB row
// locks; the loser observes a short row count and fails cleanly.
func (r *TripSeatRepo) Hold(ctx context.Context, tripID uint64, seatIDs []uint64, reservationID uint64) error {
	if len(seatIDs) == 0 {
		return ErrSeatNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	query := `UPDATE trip_seats
	          SET status = 'HELD', reservation_id = ?, updated_at = UTC_TIMESTAMP()
	          WHERE trip_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)
	            AND status = 'AVAILABLE' AND reservation_id IS NULL`
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, reservationID, tripID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(seatIDs)) {
		// At least one seat was missing, held or sold; roll everything back.
		return ErrSeatUnavailable
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Confirm transitions every seat held by reservationID from HELD to SOLD.
// The expected seat count comes from the permanent reservation_seats
// record; when fewer ledger rows flip than expected – because a concurrent
// cleanup already released some of them – the transaction is rolled back
// and ErrInvalidState is returned.
func (r *TripSeatRepo) Confirm(ctx context.Context, reservationID uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var expected int64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservation_seats WHERE reservation_id = ?`,
		reservationID,
	).Scan(&expected)
	if err != nil {
		return err
	}
	if expected == 0 {
		return ErrReservationNotFound
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE trip_seats SET status = 'SOLD', updated_at = UTC_TIMESTAMP()
		 WHERE reservation_id = ? AND status = 'HELD'`,
		reservationID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != expected {
		return ErrInvalidState
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Release transitions every seat held by reservationID from HELD back to
// AVAILABLE and clears the owner.  It is idempotent: seats already
// released by another path simply do not match, so the call reports how
// many seats it actually freed and never errors on a no-op.
func (r *TripSeatRepo) Release(ctx context.Context, reservationID uint64) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE trip_seats
		 SET status = 'AVAILABLE', reservation_id = NULL, updated_at = UTC_TIMESTAMP()
		 WHERE reservation_id = ? AND status = 'HELD'`,
		reservationID,
	)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// Quote returns the total price in cents for the given seats on the trip.
// It verifies that every requested seat exists on the trip, returning
// ErrTripNotFound when the trip itself does not exist and ErrSeatNotFound
// when the trip exists but a seat does not.  Quote does not check
// availability – that is Hold's job and checking it here would only
// invite a read-then-write race.
func (r *TripSeatRepo) Quote(ctx context.Context, tripID uint64, seatIDs []uint64) (uint32, error) {
	if len(seatIDs) == 0 {
		return 0, ErrSeatNotFound
	}
	query := `SELECT seat_id, price_cents FROM trip_seats
	          WHERE trip_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, tripID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	var total uint32
	found := 0
	for rows.Next() {
		var sid uint64
		var price uint32
		if err := rows.Scan(&sid, &price); err != nil {
			return 0, err
		}
		total += price
		found++
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if found != len(seatIDs) {
		if found == 0 {
			var trips int
			err := r.db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM trips WHERE id = ?`, tripID,
			).Scan(&trips)
			if err != nil {
				return 0, err
			}
			if trips == 0 {
				return 0, ErrTripNotFound
			}
		}
		return 0, ErrSeatNotFound
	}
	return total, nil
}

// TripSeatAvailability is one row of the availability listing returned to
// the surrounding browse layer.
type TripSeatAvailability struct {
	SeatID     uint64 `json:"seat_id"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
	Status     string `json:"status"`
	PriceCents uint32 `json:"price_cents"`
}

// ListByTrip returns every ledger row for the trip joined with the seat's
// physical label, ordered by row and seat number for deterministic output.
func (r *TripSeatRepo) ListByTrip(ctx context.Context, tripID uint64) ([]TripSeatAvailability, error) {
	const q = `SELECT ts.seat_id, se.row_label, se.seat_number, ts.status, ts.price_cents
	           FROM trip_seats ts
	           JOIN seats se ON se.id = ts.seat_id
	           WHERE ts.trip_id = ?
	           ORDER BY se.row_label, se.seat_number`
	rows, err := r.db.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]TripSeatAvailability, 0)
	for rows.Next() {
		var a TripSeatAvailability
		if err := rows.Scan(&a.SeatID, &a.RowLabel, &a.SeatNumber, &a.Status, &a.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SeatStates returns the current ledger status per seat for a reservation's
// seat set.  Used by tests and diagnostics; business transitions never read
// state before writing.
func (r *TripSeatRepo) SeatStates(ctx context.Context, tripID uint64, seatIDs []uint64) (map[uint64]string, error) {
	if len(seatIDs) == 0 {
		return map[uint64]string{}, nil
	}
	query := `SELECT seat_id, status FROM trip_seats
	          WHERE trip_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+1)
	args = append(args, tripID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	states := make(map[uint64]string, len(seatIDs))
	for rows.Next() {
		var sid uint64
		var st string
		if err := rows.Scan(&sid, &st); err != nil {
			return nil, err
		}
		states[sid] = st
	}
	return states, rows.Err()
}
