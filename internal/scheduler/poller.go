// Package scheduler drives the durable expiry tasks: a Poller claims due
// rows from the task store and dispatches each to the cleanup handler,
// retrying failures with exponential backoff and parking exhausted tasks
// for operator review.  Any number of poller processes can run against
// the same store; the store's per-row claim keeps delivery at-least-once
// without double claiming, and the handler is idempotent.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
)

// TaskStore is the durable scheduled-task persistence the poller drains.
type TaskStore interface {
	ClaimDue(ctx context.Context, limit int) ([]model.ScheduledTask, error)
	Complete(ctx context.Context, taskID uint64) error
	Reschedule(ctx context.Context, taskID uint64, fireAt time.Time) error
	MarkDead(ctx context.Context, taskID uint64) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Handler performs one cleanup attempt for a fired task.  A nil return
// consumes the task; an error requests a retry.
type Handler interface {
	HandleExpiry(ctx context.Context, reservationID uint64) error
}

// Escalator receives tasks that exhausted their retry budget.
type Escalator interface {
	PublishCleanupDead(ctx context.Context, event queue.CleanupDeadEvent) error
}

// Config carries the poller's tunables.  The retry delays (base doubling
// per attempt) and the attempt cap are configuration inputs, not fixed
// behavior.
type Config struct {
	Interval    time.Duration // poll cadence
	RetryBase   time.Duration // first retry delay; doubles per attempt
	MaxAttempts int           // attempts before a task is parked DEAD
	BatchSize   int           // max tasks claimed per poll
	StaleAfter  time.Duration // age after which RUNNING tasks are reclaimed
}

// Poller repeatedly claims due tasks and hands them to the cleanup
// handler.
type Poller struct {
	tasks     TaskStore
	handler   Handler
	escalator Escalator
	cfg       Config
	now       func() time.Time
}

// NewPoller constructs a Poller.  Zero config values fall back to
// defaults (5s interval, 2s retry base, 3 attempts, batch of 50, 5m stale
// threshold).
func NewPoller(tasks TaskStore, handler Handler, escalator Escalator, cfg Config) *Poller {
	if tasks == nil || handler == nil || escalator == nil {
		panic("nil dependency passed to NewPoller")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	return &Poller{tasks: tasks, handler: handler, escalator: escalator, cfg: cfg, now: time.Now}
}

// Run polls until the context is cancelled.  Errors are logged and the
// loop keeps going; a broken store on one tick must not stop expiry
// processing for good.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	log.Printf("scheduler: polling every %s (retry base %s, max %d attempts)",
		p.cfg.Interval, p.cfg.RetryBase, p.cfg.MaxAttempts)
	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			if err := p.DrainOnce(ctx); err != nil {
				log.Printf("scheduler: drain failed: %v", err)
			}
		}
	}
}

// DrainOnce performs a single poll: reclaim stale RUNNING tasks, claim a
// batch of due ones and process each.  Exported so operational tooling
// and tests can drive the poller deterministically.
func (p *Poller) DrainOnce(ctx context.Context) error {
	if reclaimed, err := p.tasks.ReclaimStale(ctx, p.cfg.StaleAfter); err != nil {
		log.Printf("scheduler: reclaim stale tasks: %v", err)
	} else if reclaimed > 0 {
		log.Printf("scheduler: reclaimed %d stale task(s)", reclaimed)
	}
	claimed, err := p.tasks.ClaimDue(ctx, p.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, task := range claimed {
		p.process(ctx, task)
	}
	return nil
}

// process runs one cleanup attempt and settles the task: consumed on
// success, rescheduled with backoff on failure, parked DEAD with an
// escalation event once the attempt budget is spent.
func (p *Poller) process(ctx context.Context, task model.ScheduledTask) {
	err := p.handler.HandleExpiry(ctx, task.ReservationID)
	if err == nil {
		if err := p.tasks.Complete(ctx, task.ID); err != nil {
			// The task row survives and will be reclaimed; the handler is
			// idempotent so the re-delivery no-ops.
			log.Printf("scheduler: complete task %d: %v", task.ID, err)
		}
		return
	}
	log.Printf("scheduler: cleanup attempt %d for reservation %d failed: %v",
		task.Attempts, task.ReservationID, err)
	if int(task.Attempts) >= p.cfg.MaxAttempts {
		p.escalate(ctx, task, err)
		return
	}
	fireAt := p.now().UTC().Add(p.backoff(task.Attempts))
	if err := p.tasks.Reschedule(ctx, task.ID, fireAt); err != nil {
		log.Printf("scheduler: reschedule task %d: %v", task.ID, err)
	}
}

// backoff returns the delay before the next attempt: base doubling per
// completed attempt (base 2s gives 2s, 4s, 8s).
func (p *Poller) backoff(attempts uint32) time.Duration {
	d := p.cfg.RetryBase
	for i := uint32(1); i < attempts; i++ {
		d *= 2
	}
	return d
}

// escalate parks the task DEAD and alerts the operator channel.  The
// reservation's seats may be stuck HELD; this must never be silent.
func (p *Poller) escalate(ctx context.Context, task model.ScheduledTask, lastErr error) {
	if err := p.tasks.MarkDead(ctx, task.ID); err != nil {
		log.Printf("scheduler: mark task %d dead: %v", task.ID, err)
	}
	ev := queue.CleanupDeadEvent{
		TaskID:        task.ID,
		ReservationID: task.ReservationID,
		Attempts:      task.Attempts,
		LastError:     lastErr.Error(),
		EscalatedAt:   p.now().UTC().Format(time.RFC3339),
	}
	if err := p.escalator.PublishCleanupDead(ctx, ev); err != nil {
		log.Printf("scheduler: publish cleanup.dead for task %d: %v", task.ID, err)
	}
	log.Printf("scheduler: task %d for reservation %d exhausted %d attempts, parked for review",
		task.ID, task.ReservationID, task.Attempts)
}
