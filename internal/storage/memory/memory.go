// Package memory is an in-process capacity ledger.
//
// It mirrors the locking contract of the postgres driver: a transaction takes
// exclusive per-row locks that it holds until it ends, buffers its writes, and
// applies them atomically on commit. Readers outside a transaction only ever
// see committed state.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"eventReserver/internal/models"
	"eventReserver/internal/storage"

	"github.com/google/uuid"
)

type Storage struct {
	mu           sync.Mutex
	events       map[uuid.UUID]models.Event
	reservations map[uuid.UUID]models.Reservation
	// locks holds one entry per row id that is locked or waited on.
	locks map[uuid.UUID]*rowLock
}

// rowLock is a single-slot channel: sending acquires, receiving releases.
// refs counts holders and waiters and is guarded by Storage.mu; the entry is
// dropped when it reaches zero.
type rowLock struct {
	ch   chan struct{}
	refs int
}

func New() *Storage {
	return &Storage{
		events:       make(map[uuid.UUID]models.Event),
		reservations: make(map[uuid.UUID]models.Reservation),
		locks:        make(map[uuid.UUID]*rowLock),
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) ref(id uuid.UUID) *rowLock {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[id]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		s.locks[id] = l
	}
	l.refs++

	return l
}

func (s *Storage) unref(id uuid.UUID, l *rowLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, id)
	}
}

func (s *Storage) acquire(ctx context.Context, id uuid.UUID) error {
	l := s.ref(id)

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		s.unref(id, l)
		return ctx.Err()
	}
}

// unlock releases a row lock taken with acquire.
func (s *Storage) unlock(id uuid.UUID) {
	s.mu.Lock()
	l := s.locks[id]
	s.mu.Unlock()

	<-l.ch
	s.unref(id, l)
}

func (s *Storage) InTx(ctx context.Context, fn storage.TxFunc) error {
	t := &tx{
		s:       s,
		held:    make(map[uuid.UUID]struct{}),
		updates: make(map[uuid.UUID]models.Reservation),
	}
	defer t.release()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := fn(t); err != nil {
		return err
	}

	t.commit()

	return nil
}

type tx struct {
	s       *Storage
	held    map[uuid.UUID]struct{}
	inserts []models.Reservation
	updates map[uuid.UUID]models.Reservation
}

func (t *tx) lock(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.held[id]; ok {
		return nil
	}

	if err := t.s.acquire(ctx, id); err != nil {
		return err
	}
	t.held[id] = struct{}{}

	return nil
}

func (t *tx) release() {
	for id := range t.held {
		t.s.unlock(id)
		delete(t.held, id)
	}
}

func (t *tx) commit() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, r := range t.inserts {
		t.s.reservations[r.ID] = r
	}
	for id, r := range t.updates {
		// the row lock keeps the row alive until commit
		if _, ok := t.s.reservations[id]; ok {
			t.s.reservations[id] = r
		}
	}
}

func (t *tx) LockEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	if err := t.lock(ctx, eventID); err != nil {
		return nil, err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	event, ok := t.s.events[eventID]
	if !ok {
		return nil, storage.ErrEventNotFound
	}

	return &event, nil
}

func (t *tx) LockReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if err := t.lock(ctx, id); err != nil {
		return nil, err
	}

	if r, ok := t.updates[id]; ok {
		return &r, nil
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	r, ok := t.s.reservations[id]
	if !ok {
		return nil, storage.ErrReservationNotFound
	}

	return &r, nil
}

func (t *tx) CountActive(ctx context.Context, eventID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	count := 0
	for _, r := range t.s.reservations {
		if r.EventID == eventID && r.Active() {
			count++
		}
	}
	for _, r := range t.inserts {
		if r.EventID == eventID {
			count++
		}
	}

	return count, nil
}

func (t *tx) InsertHold(ctx context.Context, r models.Reservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.State = models.StateHold
	r.UpdatedAt = r.CreatedAt
	t.inserts = append(t.inserts, r)

	return nil
}

func (t *tx) ConfirmHold(ctx context.Context, id uuid.UUID, now time.Time) (*models.Reservation, error) {
	r, err := t.LockReservation(ctx, id)
	if err != nil {
		return nil, err
	}

	r.State = models.StateConfirmed
	r.ExpiresAt = nil
	r.UpdatedAt = now
	t.updates[id] = *r

	return r, nil
}

func (s *Storage) CreateEvent(ctx context.Context, event models.Event) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.UpdatedAt = event.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[event.ID] = event

	return &event, nil
}

func (s *Storage) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[id]
	if !ok {
		return nil, storage.ErrEventNotFound
	}

	return &event, nil
}

func (s *Storage) ListEvents(ctx context.Context) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	events := make([]models.Event, 0, len(s.events))
	for _, e := range s.events {
		events = append(events, e)
	}
	s.mu.Unlock()

	// same order as the postgres driver: start date, undated last, then creation
	slices.SortFunc(events, func(a, b models.Event) int {
		switch {
		case a.StartDate != nil && b.StartDate != nil:
			if c := a.StartDate.Compare(*b.StartDate); c != 0 {
				return c
			}
		case a.StartDate != nil:
			return -1
		case b.StartDate != nil:
			return 1
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return events, nil
}

func (s *Storage) GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, storage.ErrReservationNotFound
	}

	return &r, nil
}

func (s *Storage) DeleteHold(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	if err := s.acquire(ctx, id); err != nil {
		return false, err
	}
	defer s.unlock(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok || r.UserID != userID || r.State != models.StateHold {
		return false, nil
	}
	delete(s.reservations, id)

	return true, nil
}

func (s *Storage) CountReservations(ctx context.Context, eventID uuid.UUID) (hold, confirmed int, err error) {
	if err = ctx.Err(); err != nil {
		return 0, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.reservations {
		if r.EventID != eventID {
			continue
		}
		switch r.State {
		case models.StateHold:
			hold++
		case models.StateConfirmed:
			confirmed++
		}
	}

	return hold, confirmed, nil
}

// PurgeExpiredHolds locks every candidate row (in id order, so concurrent
// purges cannot deadlock), re-checks it under the data lock, and deletes all
// survivors at once.
func (s *Storage) PurgeExpiredHolds(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	s.mu.Lock()
	var candidates []uuid.UUID
	for id, r := range s.reservations {
		if r.ExpiredAt(now) {
			candidates = append(candidates, id)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(candidates, func(a, b uuid.UUID) int {
		return slices.Compare(a[:], b[:])
	})

	held := make([]uuid.UUID, 0, len(candidates))
	defer func() {
		for _, id := range held {
			s.unlock(id)
		}
	}()

	for _, id := range candidates {
		if err := s.acquire(ctx, id); err != nil {
			return nil, err
		}
		held = append(held, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := []models.Reservation{}
	for _, id := range candidates {
		r, ok := s.reservations[id]
		if !ok || !r.ExpiredAt(now) {
			continue
		}
		delete(s.reservations, id)
		purged = append(purged, r)
	}

	return purged, nil
}
