// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// order service and handlers to distinguish between different failure
// scenarios. For example, ErrSeatUnavailable indicates that a hold lost
// the race for at least one seat, while ErrStaleState signals that a
// compare-and-set transition found the reservation already resolved by a
// concurrent path.
package repository

import "errors"

// ErrSeatUnavailable is returned by the seat ledger when any requested
// seat is not currently AVAILABLE. The hold is all-or-nothing, so no
// seat state changes when this is returned. Handlers should translate
// this into an HTTP 409 response.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrSeatNotFound is returned when a requested seat does not exist on
// the trip at all, as opposed to existing but being held or sold.
// Handlers should translate this into an HTTP 400 response.
var ErrSeatNotFound = errors.New("seat not found")

// ErrStaleState is returned by the reservation store's compare-and-set
// transition when the current state no longer matches the expected one.
// The caller lost the race to resolve the reservation and must take no
// further side effects.
var ErrStaleState = errors.New("stale reservation state")

// ErrInvalidState is returned by the seat ledger's confirm when some of
// the reservation's seats are no longer HELD by it. It defends against
// a cleanup racing ahead of a confirmation.
var ErrInvalidState = errors.New("invalid seat state")

// ErrReservationNotFound is returned when no reservation with the given
// identifier exists.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrOrderNotFound is returned when no order with the given identifier
// exists.
var ErrOrderNotFound = errors.New("order not found")

// ErrTripNotFound is returned when no trip with the given identifier
// exists.
var ErrTripNotFound = errors.New("trip not found")
