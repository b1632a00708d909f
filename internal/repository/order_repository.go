package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// OrderRepo provides data access to the orders table.  Orders wrap exactly
// one reservation each (enforced by a unique key) and carry the customer
// and payment metadata.  All timestamps are UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts a new order and populates the generated ID and
// timestamps on the provided order.  Reference, ReservationID, customer
// fields and the total must be set by the caller.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (reference, reservation_id, customer_name, customer_email, total_amount_cents)
		 VALUES (?, ?, ?, ?, ?)`,
		o.Reference, o.ReservationID, o.CustomerName, o.CustomerEmail, o.TotalAmountCents,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return r.scanOne(ctx, `SELECT id, reference, reservation_id, customer_name, customer_email, total_amount_cents, payment_ref, created_at, updated_at
	                       FROM orders WHERE id = ?`, o.ID, o)
}

// GetByID returns the order with the given primary key, or ErrOrderNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (*model.Order, error) {
	var o model.Order
	err := r.scanOne(ctx, `SELECT id, reference, reservation_id, customer_name, customer_email, total_amount_cents, payment_ref, created_at, updated_at
	                       FROM orders WHERE id = ?`, id, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByReservation returns the order wrapping the given reservation, or
// ErrOrderNotFound.
func (r *OrderRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Order, error) {
	var o model.Order
	err := r.scanOne(ctx, `SELECT id, reference, reservation_id, customer_name, customer_email, total_amount_cents, payment_ref, created_at, updated_at
	                       FROM orders WHERE reservation_id = ?`, reservationID, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// SetPaymentRefByReservation records the external payment reference on
// the order wrapping the reservation.  It is a plain update: the
// authority on whether the payment counts is the reservation store's CAS,
// which the caller has already won by the time this runs.
func (r *OrderRepo) SetPaymentRefByReservation(ctx context.Context, reservationID uint64, paymentRef string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_ref = ?, updated_at = UTC_TIMESTAMP() WHERE reservation_id = ?`,
		paymentRef, reservationID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepo) scanOne(ctx context.Context, query string, arg interface{}, o *model.Order) error {
	var payRef sql.NullString
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&o.ID, &o.Reference, &o.ReservationID, &o.CustomerName, &o.CustomerEmail,
		&o.TotalAmountCents, &payRef, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	if payRef.Valid {
		ref := payRef.String
		o.PaymentRef = &ref
	}
	return nil
}
