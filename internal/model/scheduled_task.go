package model

import "time"

// Scheduled task states.  PENDING tasks are claimed by a poller and become
// RUNNING for the duration of one cleanup attempt; failed attempts go back
// to PENDING with a pushed-out fire time until the retry budget is spent,
// after which the task is parked DEAD for operator review.  Completed and
// cancelled tasks are deleted.
const (
	TaskPending = "PENDING"
	TaskRunning = "RUNNING"
	TaskDead    = "DEAD"
)

// ScheduledTask is the durable record that guarantees a cleanup attempt
// for a PENDING reservation at or after its payment deadline, across
// process restarts.  The scheduler holds only this weak reference – the
// reservation id and a fire time – and never mutates the reservation
// directly.  A unique key on ReservationID keeps at most one live task per
// reservation.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reservation to clean up.
//  FireAt        – when the next attempt is due.
//  Attempts      – number of attempts made so far.
//  Status        – PENDING, RUNNING or DEAD.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type ScheduledTask struct {
	ID            uint64    // scheduled_tasks.id
	ReservationID uint64    // scheduled_tasks.reservation_id
	FireAt        time.Time // scheduled_tasks.fire_at
	Attempts      uint32    // scheduled_tasks.attempts
	Status        string    // scheduled_tasks.status
	CreatedAt     time.Time // scheduled_tasks.created_at
	UpdatedAt     time.Time // scheduled_tasks.updated_at
}
