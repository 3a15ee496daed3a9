package reservation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"eventReserver/internal/lib/logger/handlers/slogdiscard"
	"eventReserver/internal/models"
	"eventReserver/internal/storage/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Types() []models.LifecycleType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]models.LifecycleType, 0, len(p.events))
	for _, ev := range p.events {
		types = append(types, ev.Type)
	}
	return types
}

type fixture struct {
	ledger    *memory.Storage
	clock     *fakeClock
	publisher *recordingPublisher
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ledger:    memory.New(),
		clock:     newFakeClock(),
		publisher: &recordingPublisher{},
	}
	f.svc = New(slogdiscard.NewDiscardLogger(), f.ledger,
		WithClock(f.clock.Now),
		WithPublisher(f.publisher),
	)

	return f
}

func (f *fixture) event(t *testing.T, capacity int, active bool) uuid.UUID {
	t.Helper()

	ev, err := f.ledger.CreateEvent(context.Background(), models.Event{
		Title:    "show",
		Capacity: capacity,
		IsActive: active,
	})
	require.NoError(t, err)

	return ev.ID
}

func (f *fixture) activeCount(t *testing.T, eventID uuid.UUID) int {
	t.Helper()

	hold, confirmed, err := f.ledger.CountReservations(context.Background(), eventID)
	require.NoError(t, err)

	return hold + confirmed
}

func TestCreateHold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 1, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	assert.Equal(t, models.StateHold, hold.State)
	assert.Equal(t, "alice", hold.UserID)
	assert.Equal(t, eventID, hold.EventID)
	require.NotNil(t, hold.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(HoldDuration), *hold.ExpiresAt)

	stored, err := f.ledger.GetReservation(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, *hold, *stored)

	assert.Equal(t, []models.LifecycleType{models.LifecycleHeld}, f.publisher.Types())
}

func TestCreateHoldRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	full := f.event(t, 0, true)
	inactive := f.event(t, 10, false)

	testCases := []struct {
		name    string
		userID  string
		eventID uuid.UUID
		wantErr error
	}{
		{name: "Unknown event", userID: "alice", eventID: uuid.New(), wantErr: ErrEventNotFound},
		{name: "Inactive event", userID: "alice", eventID: inactive, wantErr: ErrEventInactive},
		{name: "Zero capacity", userID: "alice", eventID: full, wantErr: ErrNoCapacity},
		{name: "Missing user", userID: "", eventID: full, wantErr: ErrInvalidInput},
		{name: "Missing event", userID: "alice", eventID: uuid.Nil, wantErr: ErrInvalidInput},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateHold(ctx, tc.userID, tc.eventID)
			require.ErrorIs(t, err, tc.wantErr)
			assert.NotErrorIs(t, err, ErrStorage)
			assert.True(t, IsRejection(err))
		})
	}

	assert.Empty(t, f.publisher.Types())
}

// capacity=1: A holds, B is rejected, A confirms, A's second confirm is wrong-state.
func TestSingleSeatScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 1, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	_, err = f.svc.CreateHold(ctx, "bob", eventID)
	require.ErrorIs(t, err, ErrNoCapacity)

	confirmed, err := f.svc.ConfirmReservation(ctx, "alice", hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, confirmed.State)
	assert.Nil(t, confirmed.ExpiresAt)

	_, err = f.svc.ConfirmReservation(ctx, "alice", hold.ID)
	require.ErrorIs(t, err, ErrWrongState)

	assert.Equal(t, 1, f.activeCount(t, eventID))
	assert.Equal(t, []models.LifecycleType{models.LifecycleHeld, models.LifecycleConfirmed}, f.publisher.Types())
}

func TestConfirmExpiredHold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 2, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	// exactly at expires_at the hold is already dead
	f.clock.Advance(HoldDuration)

	_, err = f.svc.ConfirmReservation(ctx, "alice", hold.ID)
	require.ErrorIs(t, err, ErrHoldExpired)

	stored, err := f.ledger.GetReservation(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateHold, stored.State)
}

// capacity=2, A holds at t=0; at t=6m the unswept hold still counts but cannot
// be confirmed; after a sweep it is gone.
func TestExpiryScenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 2, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)

	av, err := f.svc.GetEventAvailability(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, av.HoldCount)
	assert.Equal(t, 1, av.Remaining)

	_, err = f.svc.ConfirmReservation(ctx, "alice", hold.ID)
	require.ErrorIs(t, err, ErrHoldExpired)

	purged, err := f.ledger.PurgeExpiredHolds(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Len(t, purged, 1)
	assert.Equal(t, hold.ID, purged[0].ID)

	av, err = f.svc.GetEventAvailability(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 0, av.HoldCount)
	assert.Equal(t, 0, av.ConfirmedCount)
	assert.Equal(t, 2, av.Remaining)
}

func TestCancelFreesCapacity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 1, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelReservation(ctx, "alice", hold.ID))

	_, err = f.ledger.GetReservation(ctx, hold.ID)
	require.ErrorIs(t, err, ErrReservationNotFound)

	_, err = f.svc.CreateHold(ctx, "bob", eventID)
	require.NoError(t, err)

	assert.Equal(t,
		[]models.LifecycleType{models.LifecycleHeld, models.LifecycleCancelled, models.LifecycleHeld},
		f.publisher.Types(),
	)
}

func TestCancelRejections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 5, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	err = f.svc.CancelReservation(ctx, "alice", uuid.New())
	require.ErrorIs(t, err, ErrReservationNotFound)

	err = f.svc.CancelReservation(ctx, "mallory", hold.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	_, err = f.svc.ConfirmReservation(ctx, "alice", hold.ID)
	require.NoError(t, err)

	err = f.svc.CancelReservation(ctx, "alice", hold.ID)
	require.ErrorIs(t, err, ErrWrongState)

	stored, err := f.ledger.GetReservation(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateConfirmed, stored.State)
}

func TestOwnershipEnforcement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 1, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmReservation(ctx, "mallory", hold.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	err = f.svc.CancelReservation(ctx, "mallory", hold.ID)
	require.ErrorIs(t, err, ErrNotOwner)

	stored, err := f.ledger.GetReservation(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, *hold, *stored)
}

func TestConfirmUnknownReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.ConfirmReservation(context.Background(), "alice", uuid.New())
	require.ErrorIs(t, err, ErrReservationNotFound)
}

func TestAvailabilityUnknownEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.GetEventAvailability(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestPublishFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	eventID := f.event(t, 1, true)

	_, err := f.svc.CreateHold(context.Background(), "alice", eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.activeCount(t, eventID))
}

func TestConcurrentHoldsNeverOverbook(t *testing.T) {
	t.Parallel()

	const (
		capacity = 7
		callers  = 64
	)

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, capacity, true)

	var succeeded, rejected atomic.Int32

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		userID := uuid.NewString()
		g.Go(func() error {
			_, err := f.svc.CreateHold(ctx, userID, eventID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrNoCapacity):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, capacity, succeeded.Load())
	assert.EqualValues(t, callers-capacity, rejected.Load())
	assert.Equal(t, capacity, f.activeCount(t, eventID))
}

func TestConcurrentDoubleConfirm(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, 1, true)

	hold, err := f.svc.CreateHold(ctx, "alice", eventID)
	require.NoError(t, err)

	errs := make([]error, 2)

	var g errgroup.Group
	for i := range errs {
		i := i
		g.Go(func() error {
			_, errs[i] = f.svc.ConfirmReservation(ctx, "alice", hold.ID)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, wrongState int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrWrongState):
			wrongState++
		}
	}

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, wrongState)
}

func TestConcurrentMixedOperationsKeepInvariant(t *testing.T) {
	t.Parallel()

	const capacity = 5

	ctx := context.Background()
	f := newFixture(t)
	eventID := f.event(t, capacity, true)

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		userID := uuid.NewString()
		step := i
		g.Go(func() error {
			hold, err := f.svc.CreateHold(ctx, userID, eventID)
			if errors.Is(err, ErrNoCapacity) {
				return nil
			}
			if err != nil {
				return err
			}

			switch step % 3 {
			case 0:
				_, err = f.svc.ConfirmReservation(ctx, userID, hold.ID)
			case 1:
				err = f.svc.CancelReservation(ctx, userID, hold.ID)
			default:
				_, err = f.ledger.PurgeExpiredHolds(ctx, f.clock.Now().Add(time.Hour))
			}
			if err != nil && !IsRejection(err) {
				return err
			}

			held, confirmed, err := f.ledger.CountReservations(ctx, eventID)
			if err != nil {
				return err
			}
			if held+confirmed > capacity {
				return errors.New("capacity exceeded")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, f.activeCount(t, eventID), capacity)
}
