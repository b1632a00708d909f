package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
)

// These tests exercise the conditional-UPDATE primitives against a real
// MySQL instance with schema.sql applied.  Set TEST_DATABASE_DSN to run
// them, e.g.:
//
//	TEST_DATABASE_DSN='root:root@tcp(127.0.0.1:3306)/trip_seat_reservation_test?parseTime=true&loc=UTC'

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Ping())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedTrip inserts a vehicle, two seats, a trip and its two ledger rows,
// returning the trip id and seat ids.  Each call uses a unique plate so
// runs do not collide.
func seedTrip(t *testing.T, db *sql.DB) (tripID uint64, seatIDs []uint64) {
	t.Helper()
	ctx := context.Background()

	plate := fmt.Sprintf("TST-%d", time.Now().UnixNano())
	res, err := db.ExecContext(ctx,
		`INSERT INTO vehicles (plate, model, capacity) VALUES (?, 'test bus', 2)`, plate)
	require.NoError(t, err)
	vehicleID, err := res.LastInsertId()
	require.NoError(t, err)

	for n := 1; n <= 2; n++ {
		res, err = db.ExecContext(ctx,
			`INSERT INTO seats (vehicle_id, row_label, seat_number) VALUES (?, 'A', ?)`, vehicleID, n)
		require.NoError(t, err)
		seatID, err := res.LastInsertId()
		require.NoError(t, err)
		seatIDs = append(seatIDs, uint64(seatID))
	}

	res, err = db.ExecContext(ctx,
		`INSERT INTO trips (vehicle_id, origin, destination, departs_at) VALUES (?, 'A-town', 'B-town', ?)`,
		vehicleID, time.Now().UTC().Add(24*time.Hour))
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	tripID = uint64(id)

	for _, seatID := range seatIDs {
		_, err = db.ExecContext(ctx,
			`INSERT INTO trip_seats (trip_id, seat_id, status, price_cents) VALUES (?, ?, 'AVAILABLE', 2500)`,
			tripID, seatID)
		require.NoError(t, err)
	}
	return tripID, seatIDs
}

func TestHoldIsAllOrNothing(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tripID, seatIDs := seedTrip(t, db)

	ledger := NewTripSeatRepo(db)
	reservations := NewReservationRepo(db)

	first, err := reservations.Create(ctx, tripID, seatIDs[:1], time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, err)
	require.NoError(t, ledger.Hold(ctx, tripID, seatIDs[:1], first.ID))

	// A hold overlapping the taken seat must fail without touching the
	// free one.
	second, err := reservations.Create(ctx, tripID, seatIDs, time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, err)
	err = ledger.Hold(ctx, tripID, seatIDs, second.ID)
	require.ErrorIs(t, err, ErrSeatUnavailable)

	states, err := ledger.SeatStates(ctx, tripID, seatIDs)
	require.NoError(t, err)
	require.Equal(t, model.SeatHeld, states[seatIDs[0]])
	require.Equal(t, model.SeatAvailable, states[seatIDs[1]])

	// Release is idempotent: first call frees the seat, second finds
	// nothing.
	released, err := ledger.Release(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, 1, released)
	released, err = ledger.Release(ctx, first.ID)
	require.NoError(t, err)
	require.Zero(t, released)
}

func TestQuoteDistinguishesUnknownTripFromUnknownSeat(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tripID, seatIDs := seedTrip(t, db)
	ledger := NewTripSeatRepo(db)

	_, err := ledger.Quote(ctx, tripID+1000000, seatIDs)
	require.ErrorIs(t, err, ErrTripNotFound)

	_, err = ledger.Quote(ctx, tripID, []uint64{seatIDs[0], seatIDs[1] + 1000000})
	require.ErrorIs(t, err, ErrSeatNotFound)

	total, err := ledger.Quote(ctx, tripID, seatIDs)
	require.NoError(t, err)
	require.Equal(t, uint32(5000), total)
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tripID, seatIDs := seedTrip(t, db)

	reservations := NewReservationRepo(db)
	res, err := reservations.Create(ctx, tripID, seatIDs, time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, res.Status)
	require.Equal(t, seatIDs, res.SeatIDs)

	require.NoError(t, reservations.Transition(ctx, res.ID, model.ReservationPending, model.ReservationConfirmed))

	// The state already moved; a second resolution attempt loses.
	err = reservations.Transition(ctx, res.ID, model.ReservationPending, model.ReservationReleased)
	require.ErrorIs(t, err, ErrStaleState)

	err = reservations.Transition(ctx, res.ID+1000000, model.ReservationPending, model.ReservationReleased)
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestTaskScheduleClaimLifecycle(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	tripID, seatIDs := seedTrip(t, db)

	reservations := NewReservationRepo(db)
	tasks := NewTaskRepo(db)

	res, err := reservations.Create(ctx, tripID, seatIDs, time.Now().UTC().Add(15*time.Minute))
	require.NoError(t, err)

	// A task due in the past is claimable exactly once.
	require.NoError(t, tasks.Schedule(ctx, res.ID, time.Now().UTC().Add(-time.Minute)))
	claimed, err := tasks.ClaimDue(ctx, 100)
	require.NoError(t, err)
	var task *model.ScheduledTask
	for i := range claimed {
		if claimed[i].ReservationID == res.ID {
			task = &claimed[i]
		}
	}
	require.NotNil(t, task, "due task must be claimed")
	require.Equal(t, uint32(1), task.Attempts)

	claimed, err = tasks.ClaimDue(ctx, 100)
	require.NoError(t, err)
	for _, c := range claimed {
		require.NotEqual(t, res.ID, c.ReservationID, "RUNNING task must not be claimed twice")
	}

	// Rescheduling into the future parks it beyond this poll, and polling
	// again must not burn an attempt on the not-yet-due row.
	require.NoError(t, tasks.Reschedule(ctx, task.ID, time.Now().UTC().Add(time.Hour)))
	claimed, err = tasks.ClaimDue(ctx, 100)
	require.NoError(t, err)
	for _, c := range claimed {
		require.NotEqual(t, task.ID, c.ID)
	}
	var attempts uint32
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT attempts FROM scheduled_tasks WHERE id = ?`, task.ID).Scan(&attempts))
	require.Equal(t, uint32(1), attempts)

	// Cancel removes the pending row; completing the id again is a no-op.
	require.NoError(t, tasks.Cancel(ctx, res.ID))
	require.NoError(t, tasks.Complete(ctx, task.ID))
}
