package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// ReservationRepo is the reservation store.  A reservation is created
// PENDING together with its permanent reservation_seats rows in a single
// transaction, and thereafter is mutated only through Transition – a
// compare-and-set on the status column.  That CAS is the single
// race-resolution point between payment confirmation, explicit cancel and
// the expiry cleanup: whichever caller's transition lands first wins, and
// every loser receives ErrStaleState.  All timestamps are UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a new PENDING reservation and its reservation_seats rows
// in one transaction.  Seat prices are snapshotted from the ledger inside
// the same INSERT..SELECT, so the permanent record always reflects what
// the customer was quoted.  When any seat does not exist on the trip the
// transaction is rolled back and ErrSeatNotFound is returned.  ExpiresAt
// must already be computed by the caller (creation time plus the payment
// window).
func (r *ReservationRepo) Create(ctx context.Context, tripID uint64, seatIDs []uint64, expiresAt time.Time) (*model.Reservation, error) {
	if len(seatIDs) == 0 {
		return nil, ErrSeatNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (trip_id, status, expires_at) VALUES (?, 'PENDING', ?)`,
		tripID, expiresAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	// Snapshot the seat set and current prices from the ledger.
	query := `INSERT INTO reservation_seats (reservation_id, trip_id, seat_id, price_cents)
	          SELECT ?, trip_id, seat_id, price_cents FROM trip_seats
	          WHERE trip_id = ? AND seat_id IN (` + placeholders(len(seatIDs)) + `)`
	args := make([]interface{}, 0, len(seatIDs)+2)
	args = append(args, id, tripID)
	for _, sid := range seatIDs {
		args = append(args, sid)
	}
	seatRes, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	inserted, err := seatRes.RowsAffected()
	if err != nil {
		return nil, err
	}
	if inserted != int64(len(seatIDs)) {
		return nil, ErrSeatNotFound
	}
	// Query back the full row to populate timestamps and defaults.
	res := &model.Reservation{SeatIDs: seatIDs}
	err = tx.QueryRowContext(ctx,
		`SELECT id, trip_id, status, expires_at, created_at, updated_at FROM reservations WHERE id = ?`,
		id,
	).Scan(&res.ID, &res.TripID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

// Get returns the reservation and its seat IDs, or ErrReservationNotFound.
func (r *ReservationRepo) Get(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, trip_id, status, expires_at, created_at, updated_at FROM reservations WHERE id = ?`,
		id,
	).Scan(&res.ID, &res.TripID, &res.Status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seat_id FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_id`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sid uint64
		if err := rows.Scan(&sid); err != nil {
			return nil, err
		}
		res.SeatIDs = append(res.SeatIDs, sid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transition performs the compare-and-set state change: it succeeds only
// when the reservation's current status equals from.  A zero row count is
// disambiguated with a follow-up read – ErrReservationNotFound when the
// row is missing, ErrStaleState when another path already resolved it.
// This single conditional UPDATE is what totally orders all transitions
// out of PENDING; no caller may write the status column any other way.
func (r *ReservationRepo) Transition(ctx context.Context, id uint64, from, to string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
		to, id, from,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrReservationNotFound
	}
	if err != nil {
		return err
	}
	// The row exists but its status is not `from` any more; even when it
	// already equals `to` (a duplicate webhook, say) the CAS was lost and
	// the first caller performed the side effects.
	return ErrStaleState
}
