package model

import "time"

// Order is the customer-facing aggregate around a reservation.  It carries
// the customer and payment metadata that the reservation itself does not
// need.  An order is terminal exactly when its reservation is.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – opaque public identifier returned to the customer.
//  ReservationID    – the single reservation this order wraps.
//  CustomerName     – buyer name.
//  CustomerEmail    – buyer email.
//  TotalAmountCents – total price in cents for all seats.
//  PaymentRef       – external payment reference once paid (nullable).
//  CreatedAt        – creation timestamp.
//  UpdatedAt        – last update timestamp.
type Order struct {
	ID               uint64    // orders.id
	Reference        string    // orders.reference
	ReservationID    uint64    // orders.reservation_id
	CustomerName     string    // orders.customer_name
	CustomerEmail    string    // orders.customer_email
	TotalAmountCents uint32    // orders.total_amount_cents
	PaymentRef       *string   // orders.payment_ref (nullable)
	CreatedAt        time.Time // orders.created_at
	UpdatedAt        time.Time // orders.updated_at
}
