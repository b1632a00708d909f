package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/trip-seat-reservation/internal/model"
	"github.com/iliyamo/trip-seat-reservation/internal/queue"
	"github.com/iliyamo/trip-seat-reservation/internal/repository"
)

// The fakes below mirror the semantics the MySQL repositories provide:
// the ledger's hold is all-or-nothing under a lock, and the reservation
// store's transition is a genuine compare-and-set.  That makes the
// concurrency tests meaningful – two goroutines really do race on the
// same primitives the production code relies on.

type fakeSeat struct {
	status string
	owner  uint64
	price  uint32
}

type fakeLedger struct {
	mu     sync.Mutex
	tripID uint64
	seats  map[uint64]*fakeSeat
}

func newFakeLedger(tripID uint64, seatIDs ...uint64) *fakeLedger {
	l := &fakeLedger{tripID: tripID, seats: make(map[uint64]*fakeSeat)}
	for _, id := range seatIDs {
		l.seats[id] = &fakeSeat{status: model.SeatAvailable, price: 1500}
	}
	return l
}

func (l *fakeLedger) Hold(_ context.Context, tripID uint64, seatIDs []uint64, reservationID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tripID != l.tripID {
		return repository.ErrSeatNotFound
	}
	for _, id := range seatIDs {
		s, ok := l.seats[id]
		if !ok {
			return repository.ErrSeatNotFound
		}
		if s.status != model.SeatAvailable {
			return repository.ErrSeatUnavailable
		}
	}
	for _, id := range seatIDs {
		l.seats[id].status = model.SeatHeld
		l.seats[id].owner = reservationID
	}
	return nil
}

func (l *fakeLedger) Confirm(_ context.Context, reservationID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	owned := 0
	for _, s := range l.seats {
		if s.owner == reservationID {
			owned++
			if s.status != model.SeatHeld {
				return repository.ErrInvalidState
			}
		}
	}
	if owned == 0 {
		return repository.ErrReservationNotFound
	}
	for _, s := range l.seats {
		if s.owner == reservationID {
			s.status = model.SeatSold
		}
	}
	return nil
}

func (l *fakeLedger) Release(_ context.Context, reservationID uint64) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	released := 0
	for _, s := range l.seats {
		if s.owner == reservationID && s.status == model.SeatHeld {
			s.status = model.SeatAvailable
			s.owner = 0
			released++
		}
	}
	return released, nil
}

func (l *fakeLedger) Quote(_ context.Context, tripID uint64, seatIDs []uint64) (uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if tripID != l.tripID {
		return 0, repository.ErrTripNotFound
	}
	var total uint32
	for _, id := range seatIDs {
		s, ok := l.seats[id]
		if !ok {
			return 0, repository.ErrSeatNotFound
		}
		total += s.price
	}
	return total, nil
}

func (l *fakeLedger) status(seatID uint64) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seats[seatID].status
}

type fakeReservationStore struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]*model.Reservation
}

func newFakeReservationStore() *fakeReservationStore {
	return &fakeReservationStore{items: make(map[uint64]*model.Reservation)}
}

func (s *fakeReservationStore) Create(_ context.Context, tripID uint64, seatIDs []uint64, expiresAt time.Time) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	res := &model.Reservation{
		ID:        s.nextID,
		TripID:    tripID,
		SeatIDs:   append([]uint64(nil), seatIDs...),
		Status:    model.ReservationPending,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	s.items[res.ID] = res
	return res, nil
}

func (s *fakeReservationStore) Get(_ context.Context, id uint64) (*model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	cp := *res
	cp.SeatIDs = append([]uint64(nil), res.SeatIDs...)
	return &cp, nil
}

func (s *fakeReservationStore) Transition(_ context.Context, id uint64, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.items[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if res.Status != from {
		return repository.ErrStaleState
	}
	res.Status = to
	return nil
}

type fakeOrderStore struct {
	mu     sync.Mutex
	nextID uint64
	items  map[uint64]*model.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{items: make(map[uint64]*model.Order)}
}

func (s *fakeOrderStore) Create(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = s.nextID
	o.CreatedAt = time.Now().UTC()
	cp := *o
	s.items[o.ID] = &cp
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id uint64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.items[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetByReservation(_ context.Context, reservationID uint64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.items {
		if o.ReservationID == reservationID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (s *fakeOrderStore) SetPaymentRefByReservation(_ context.Context, reservationID uint64, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.items {
		if o.ReservationID == reservationID {
			o.PaymentRef = &ref
			return nil
		}
	}
	return repository.ErrOrderNotFound
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled map[uint64]time.Time
	cancelled []uint64
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[uint64]time.Time)}
}

func (s *fakeScheduler) Schedule(_ context.Context, reservationID uint64, fireAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled[reservationID] = fireAt
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, reservationID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scheduled, reservationID)
	s.cancelled = append(s.cancelled, reservationID)
	return nil
}

func (s *fakeScheduler) pendingFor(reservationID uint64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.scheduled[reservationID]
	return at, ok
}

type fakePublisher struct {
	mu        sync.Mutex
	confirmed []queue.OrderConfirmedEvent
	released  []queue.ReservationReleasedEvent
}

func (p *fakePublisher) PublishOrderConfirmed(_ context.Context, ev queue.OrderConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
	return nil
}

func (p *fakePublisher) PublishReservationReleased(_ context.Context, ev queue.ReservationReleasedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = append(p.released, ev)
	return nil
}

func (p *fakePublisher) releasedEvents() []queue.ReservationReleasedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.ReservationReleasedEvent(nil), p.released...)
}

type engineFixture struct {
	ledger    *fakeLedger
	store     *fakeReservationStore
	orders    *fakeOrderStore
	scheduler *fakeScheduler
	events    *fakePublisher
	service   *OrderService
	worker    *CleanupWorker
}

const testTripID = uint64(7)

func newEngineFixture(seatIDs ...uint64) *engineFixture {
	f := &engineFixture{
		ledger:    newFakeLedger(testTripID, seatIDs...),
		store:     newFakeReservationStore(),
		orders:    newFakeOrderStore(),
		scheduler: newFakeScheduler(),
		events:    &fakePublisher{},
	}
	f.service = NewOrderService(f.ledger, f.store, f.orders, f.scheduler, f.events, 15*time.Minute)
	f.worker = NewCleanupWorker(f.store, f.ledger, f.events)
	return f
}

func TestCreateOrderHoldsSeatsAndSchedulesExpiry(t *testing.T) {
	f := newEngineFixture(1, 2, 3)
	ctx := context.Background()

	start := time.Now().UTC()
	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID:        testTripID,
		SeatIDs:       []uint64{1, 2, 2, 0}, // duplicates and zeros are dropped
		CustomerName:  "Dana",
		CustomerEmail: "dana@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, result.Reservation.SeatIDs)
	require.Equal(t, model.ReservationPending, result.Reservation.Status)
	require.Equal(t, uint32(3000), result.Order.TotalAmountCents)
	require.NotEmpty(t, result.Order.Reference)

	require.Equal(t, model.SeatHeld, f.ledger.status(1))
	require.Equal(t, model.SeatHeld, f.ledger.status(2))
	require.Equal(t, model.SeatAvailable, f.ledger.status(3))

	fireAt, ok := f.scheduler.pendingFor(result.Reservation.ID)
	require.True(t, ok, "expiry task must be scheduled")
	window := fireAt.Sub(start)
	require.InDelta(t, (15 * time.Minute).Seconds(), window.Seconds(), 2.0)
}

func TestCreateOrderConflictLeavesNoTrace(t *testing.T) {
	f := newEngineFixture(4, 5)
	ctx := context.Background()

	first, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{4}, CustomerName: "A", CustomerEmail: "a@example.com",
	})
	require.NoError(t, err)

	_, err = f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{4, 5}, CustomerName: "B", CustomerEmail: "b@example.com",
	})
	require.ErrorIs(t, err, repository.ErrSeatUnavailable)

	// All-or-nothing: the free seat stayed free and the loser's
	// reservation was resolved with its task cancelled.
	require.Equal(t, model.SeatAvailable, f.ledger.status(5))
	require.Equal(t, model.SeatHeld, f.ledger.status(4))
	loser, err := f.store.Get(ctx, first.Reservation.ID+1)
	require.NoError(t, err)
	require.Equal(t, model.ReservationReleased, loser.Status)
	_, pending := f.scheduler.pendingFor(loser.ID)
	require.False(t, pending, "loser's expiry task must be cancelled")
}

func TestCreateOrderUnknownTrip(t *testing.T) {
	f := newEngineFixture(1)
	ctx := context.Background()

	_, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID + 1, SeatIDs: []uint64{1}, CustomerName: "Dana", CustomerEmail: "d@example.com",
	})
	require.ErrorIs(t, err, repository.ErrTripNotFound)

	// Nothing was persisted for the rejected request.
	_, err = f.store.Get(ctx, 1)
	require.ErrorIs(t, err, repository.ErrReservationNotFound)
}

func TestConcurrentCreateOrderExactlyOneWinner(t *testing.T) {
	f := newEngineFixture(9)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateOrder(ctx, CreateOrderInput{
				TripID: testTripID, SeatIDs: []uint64{9}, CustomerName: "X", CustomerEmail: "x@example.com",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, repository.ErrSeatUnavailable)
		}
	}
	require.Equal(t, 1, winners, "exactly one concurrent order may hold the seat")
	require.Equal(t, model.SeatHeld, f.ledger.status(9))
}

func TestConfirmPaymentInsideWindow(t *testing.T) {
	f := newEngineFixture(1, 2)
	ctx := context.Background()

	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{1, 2}, CustomerName: "Dana", CustomerEmail: "dana@example.com",
	})
	require.NoError(t, err)
	resID := result.Reservation.ID

	res, err := f.service.ConfirmPayment(ctx, resID, "pay_123")
	require.NoError(t, err)
	require.Equal(t, model.ReservationConfirmed, res.Status)
	require.Equal(t, model.SeatSold, f.ledger.status(1))
	require.Equal(t, model.SeatSold, f.ledger.status(2))

	_, pending := f.scheduler.pendingFor(resID)
	require.False(t, pending, "task must be cancelled after confirmation")

	order, err := f.orders.GetByReservation(ctx, resID)
	require.NoError(t, err)
	require.NotNil(t, order.PaymentRef)
	require.Equal(t, "pay_123", *order.PaymentRef)

	// A cleanup firing anyway (cancel raced the claim) must be a no-op.
	require.NoError(t, f.worker.HandleExpiry(ctx, resID))
	require.Equal(t, model.SeatSold, f.ledger.status(1))
	res, err = f.store.Get(ctx, resID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationConfirmed, res.Status)
}

func TestConfirmPaymentDuplicateWebhook(t *testing.T) {
	f := newEngineFixture(1)
	ctx := context.Background()

	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{1}, CustomerName: "Dana", CustomerEmail: "d@example.com",
	})
	require.NoError(t, err)

	_, err = f.service.ConfirmPayment(ctx, result.Reservation.ID, "pay_1")
	require.NoError(t, err)
	res, err := f.service.ConfirmPayment(ctx, result.Reservation.ID, "pay_1")
	require.NoError(t, err, "duplicate webhook for a confirmed reservation is success")
	require.Equal(t, model.ReservationConfirmed, res.Status)
}

func TestConfirmPaymentAfterCleanupReturnsExpired(t *testing.T) {
	f := newEngineFixture(3)
	ctx := context.Background()

	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{3}, CustomerName: "Dana", CustomerEmail: "d@example.com",
	})
	require.NoError(t, err)
	resID := result.Reservation.ID

	// The window elapses and the cleanup wins the CAS first.
	require.NoError(t, f.worker.HandleExpiry(ctx, resID))
	require.Equal(t, model.SeatAvailable, f.ledger.status(3))

	_, err = f.service.ConfirmPayment(ctx, resID, "pay_late")
	require.ErrorIs(t, err, ErrReservationExpired)

	// The late payer does not get the seat back.
	require.Equal(t, model.SeatAvailable, f.ledger.status(3))
	res, err := f.store.Get(ctx, resID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationExpired, res.Status)
}

func TestCancelReleasesPendingReservation(t *testing.T) {
	f := newEngineFixture(1, 2)
	ctx := context.Background()

	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{1, 2}, CustomerName: "Dana", CustomerEmail: "d@example.com",
	})
	require.NoError(t, err)
	resID := result.Reservation.ID

	released, err := f.service.Cancel(ctx, resID)
	require.NoError(t, err)
	require.Equal(t, 2, released)
	require.Equal(t, model.SeatAvailable, f.ledger.status(1))
	require.Equal(t, model.SeatAvailable, f.ledger.status(2))

	res, err := f.store.Get(ctx, resID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationReleased, res.Status)

	events := f.events.releasedEvents()
	require.Len(t, events, 1)
	require.Equal(t, "cancelled", events[0].Reason)

	// Cancelling again is an idempotent no-op.
	released, err = f.service.Cancel(ctx, resID)
	require.NoError(t, err)
	require.Zero(t, released)
}

func TestCancelConfirmedReservationIsNoop(t *testing.T) {
	f := newEngineFixture(1)
	ctx := context.Background()

	result, err := f.service.CreateOrder(ctx, CreateOrderInput{
		TripID: testTripID, SeatIDs: []uint64{1}, CustomerName: "Dana", CustomerEmail: "d@example.com",
	})
	require.NoError(t, err)
	_, err = f.service.ConfirmPayment(ctx, result.Reservation.ID, "pay_1")
	require.NoError(t, err)

	released, err := f.service.Cancel(ctx, result.Reservation.ID)
	require.NoError(t, err)
	require.Zero(t, released)
	require.Equal(t, model.SeatSold, f.ledger.status(1))
}

func TestExactlyOneTerminalStateUnderContention(t *testing.T) {
	// Race confirm, cancel and expiry against the same PENDING
	// reservation many times; the CAS must let exactly one through.
	for i := 0; i < 50; i++ {
		f := newEngineFixture(1)
		ctx := context.Background()
		result, err := f.service.CreateOrder(ctx, CreateOrderInput{
			TripID: testTripID, SeatIDs: []uint64{1}, CustomerName: "Dana", CustomerEmail: "d@example.com",
		})
		require.NoError(t, err)
		resID := result.Reservation.ID

		var wg sync.WaitGroup
		wg.Add(3)
		go func() { defer wg.Done(); _, _ = f.service.ConfirmPayment(ctx, resID, "pay") }()
		go func() { defer wg.Done(); _, _ = f.service.Cancel(ctx, resID) }()
		go func() { defer wg.Done(); _ = f.worker.HandleExpiry(ctx, resID) }()
		wg.Wait()

		res, err := f.store.Get(ctx, resID)
		require.NoError(t, err)
		require.Contains(t, []string{
			model.ReservationConfirmed, model.ReservationReleased, model.ReservationExpired,
		}, res.Status)

		// The ledger must agree with whichever transition won.
		switch res.Status {
		case model.ReservationConfirmed:
			require.Equal(t, model.SeatSold, f.ledger.status(1))
		default:
			require.Equal(t, model.SeatAvailable, f.ledger.status(1))
		}
	}
}

func TestDedupeSeatIDs(t *testing.T) {
	require.Equal(t, []uint64{3, 1, 2}, dedupeSeatIDs([]uint64{3, 1, 3, 0, 2, 1}))
	require.Empty(t, dedupeSeatIDs([]uint64{0, 0}))
	require.Empty(t, dedupeSeatIDs(nil))
}
