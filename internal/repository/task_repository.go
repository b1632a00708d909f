package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// TaskRepo provides data access to the scheduled_tasks table, the durable
// half of the expiry scheduler.  Tasks survive process restarts; pollers
// claim due rows with a per-row compare-and-set on the status column, so
// any number of poller processes can drain the table without double
// delivery.  Completed and cancelled tasks are deleted; tasks that exhaust
// their retry budget are parked DEAD for operator review, never silently
// dropped.  All timestamps are UTC.
type TaskRepo struct {
	db *sql.DB
}

// NewTaskRepo returns a new TaskRepo bound to the given database.
func NewTaskRepo(db *sql.DB) *TaskRepo { return &TaskRepo{db: db} }

// Schedule persists an expiry task for the reservation, due at fireAt.
// The unique key on reservation_id keeps at most one live task per
// reservation; re-scheduling (a retried create, say) resets the existing
// row instead of failing.
func (r *TaskRepo) Schedule(ctx context.Context, reservationID uint64, fireAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO scheduled_tasks (reservation_id, fire_at, attempts, status)
		 VALUES (?, ?, 0, 'PENDING')
		 ON DUPLICATE KEY UPDATE fire_at = VALUES(fire_at), attempts = 0, status = 'PENDING'`,
		reservationID, fireAt.UTC().Format("2006-01-02 15:04:05"),
	)
	return err
}

// Cancel removes the reservation's task if it has not been claimed yet.
// Racing with a concurrent firing is expected and safe: a RUNNING task is
// left for its worker, whose compare-and-set on the reservation will lose
// and no-op.
func (r *TaskRepo) Cancel(ctx context.Context, reservationID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM scheduled_tasks WHERE reservation_id = ? AND status = 'PENDING'`,
		reservationID,
	)
	return err
}

// ClaimDue selects up to limit due PENDING tasks and claims each with a
// conditional UPDATE that flips it to RUNNING and increments its attempt
// count.  The update re-checks both status and fire_at: a row another
// poller claimed, failed and rescheduled into the future between our
// SELECT and our UPDATE is PENDING again but no longer due, and must not
// have an attempt burned early.  The returned tasks carry the post-claim
// attempt count.
func (r *TaskRepo) ClaimDue(ctx context.Context, limit int) ([]model.ScheduledTask, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, fire_at, attempts FROM scheduled_tasks
		 WHERE status = 'PENDING' AND fire_at <= UTC_TIMESTAMP()
		 ORDER BY fire_at
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	candidates := make([]model.ScheduledTask, 0, limit)
	for rows.Next() {
		var t model.ScheduledTask
		if err := rows.Scan(&t.ID, &t.ReservationID, &t.FireAt, &t.Attempts); err != nil {
			rows.Close()
			return nil, err
		}
		candidates = append(candidates, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	claimed := make([]model.ScheduledTask, 0, len(candidates))
	for _, t := range candidates {
		res, err := r.db.ExecContext(ctx,
			`UPDATE scheduled_tasks
			 SET status = 'RUNNING', attempts = attempts + 1, updated_at = UTC_TIMESTAMP()
			 WHERE id = ? AND status = 'PENDING' AND fire_at <= UTC_TIMESTAMP()`,
			t.ID,
		)
		if err != nil {
			return claimed, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if affected == 1 {
			t.Attempts++
			t.Status = model.TaskRunning
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

// Complete deletes a task after its cleanup attempt finished (including
// the no-op case where the reservation was already resolved).
func (r *TaskRepo) Complete(ctx context.Context, taskID uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = ?`, taskID)
	return err
}

// Reschedule puts a failed task back in line for its next attempt.
func (r *TaskRepo) Reschedule(ctx context.Context, taskID uint64, fireAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = 'PENDING', fire_at = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		fireAt.UTC().Format("2006-01-02 15:04:05"), taskID,
	)
	return err
}

// MarkDead parks a task whose retry budget is spent.  The row stays in
// the table so an operator can find reservations whose seats may be stuck
// HELD and intervene.
func (r *TaskRepo) MarkDead(ctx context.Context, taskID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = 'DEAD', updated_at = UTC_TIMESTAMP() WHERE id = ?`,
		taskID,
	)
	return err
}

// ReclaimStale returns RUNNING tasks older than the given age to PENDING.
// A task stays RUNNING past the threshold only when its worker died
// mid-attempt; the cleanup is idempotent, so re-delivery is safe.
func (r *TaskRepo) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = 'PENDING', updated_at = UTC_TIMESTAMP()
		 WHERE status = 'RUNNING' AND updated_at <= UTC_TIMESTAMP() - INTERVAL ? SECOND`,
		int(olderThan.Seconds()),
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
