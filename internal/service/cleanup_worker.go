package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// CleanupWorker consumes fired expiry tasks.  For each one it re-validates
// the reservation with a compare-and-set PENDING→EXPIRED.  Winning it
// means the payment window elapsed and the seats go back to AVAILABLE.
// Losing it to a confirmation is the expected idempotent no-op; losing it
// to an earlier expiry or cancel still repeats the seat release, because
// the winner may have failed between its CAS and its release.
type CleanupWorker struct {
	reservations ReservationStore
	ledger       SeatLedger
	events       EventPublisher
	now          func() time.Time
}

// NewCleanupWorker constructs a CleanupWorker.  All dependencies must be
// non-nil.
func NewCleanupWorker(reservations ReservationStore, ledger SeatLedger, events EventPublisher) *CleanupWorker {
	if reservations == nil || ledger == nil || events == nil {
		panic("nil dependency passed to NewCleanupWorker")
	}
	return &CleanupWorker{
		reservations: reservations,
		ledger:       ledger,
		events:       events,
		now:          time.Now,
	}
}

// HandleExpiry processes one fired task for the given reservation.  A nil
// return means the task is consumed; an error means the attempt failed
// transiently and the scheduler should retry it with backoff.  Losing the
// CAS does not end the work: the path that won it may have failed or
// crashed between its transition and its release, so every re-delivery
// for a non-CONFIRMED reservation repeats the idempotent release instead
// of assuming the winner finished.
func (w *CleanupWorker) HandleExpiry(ctx context.Context, reservationID uint64) error {
	err := w.reservations.Transition(ctx, reservationID, model.ReservationPending, model.ReservationExpired)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}
		if errors.Is(err, repository.ErrStaleState) {
			return w.releaseStranded(ctx, reservationID)
		}
		return fmt.Errorf("expire reservation %d: %w", reservationID, err)
	}
	released, err := w.ledger.Release(ctx, reservationID)
	if err != nil {
		// The reservation is already EXPIRED; the retried attempt comes
		// back through releaseStranded and repeats the release.
		return fmt.Errorf("release seats for reservation %d: %w", reservationID, err)
	}
	log.Printf("cleanup-worker: reservation %d expired, released %d seat(s)", reservationID, released)
	w.publishReleased(ctx, reservationID, released, "expired")
	return nil
}

// releaseStranded handles a fired task whose reservation already left
// PENDING.  For CONFIRMED the seats are SOLD and nothing is owed.  For
// EXPIRED and RELEASED the winning path may have died between its CAS and
// its release, which would strand the seats HELD with no one left to free
// them; the release is idempotent, so it is simply repeated here.  An
// error keeps the task alive for another retry.
func (w *CleanupWorker) releaseStranded(ctx context.Context, reservationID uint64) error {
	res, err := w.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, repository.ErrReservationNotFound) {
			return nil
		}
		return fmt.Errorf("load reservation %d: %w", reservationID, err)
	}
	if res.Status == model.ReservationConfirmed {
		return nil
	}
	released, err := w.ledger.Release(ctx, reservationID)
	if err != nil {
		return fmt.Errorf("release seats for reservation %d: %w", reservationID, err)
	}
	if released == 0 {
		return nil
	}
	reason := "expired"
	if res.Status == model.ReservationReleased {
		reason = "cancelled"
	}
	log.Printf("cleanup-worker: reservation %d already %s, released %d stranded seat(s)",
		reservationID, res.Status, released)
	w.publishReleased(ctx, reservationID, released, reason)
	return nil
}

func (w *CleanupWorker) publishReleased(ctx context.Context, reservationID uint64, released int, reason string) {
	res, err := w.reservations.Get(ctx, reservationID)
	if err != nil {
		log.Printf("cleanup-worker: load expired reservation %d: %v", reservationID, err)
		return
	}
	ev := queue.ReservationReleasedEvent{
		ReservationID: reservationID,
		TripID:        res.TripID,
		SeatIDs:       res.SeatIDs,
		SeatsReleased: released,
		Reason:        reason,
		ReleasedAt:    w.now().UTC().Format(time.RFC3339),
	}
	if err := w.events.PublishReservationReleased(ctx, ev); err != nil {
		log.Printf("cleanup-worker: publish reservation.released for reservation %d: %v", reservationID, err)
	}
}
