// Package reservation implements the hold/confirm/cancel state machine over
// the capacity ledger.
//
// Capacity is enforced by locking the event row and counting its HOLD and
// CONFIRMED reservations inside one transaction. Operations that take both
// row locks take the reservation first, then the event.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/models"
	"eventReserver/internal/storage"

	"github.com/google/uuid"
)

// HoldDuration is how long a hold keeps its capacity unit before it expires.
const HoldDuration = 5 * time.Minute

type Ledger interface {
	InTx(ctx context.Context, fn storage.TxFunc) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	DeleteHold(ctx context.Context, id uuid.UUID, userID string) (bool, error)
	CountReservations(ctx context.Context, eventID uuid.UUID) (hold, confirmed int, err error)
}

type Publisher interface {
	Publish(ctx context.Context, event models.ReservationEvent) error
}

type Recorder interface {
	ObserveOperation(operation string, err error)
}

type Service struct {
	log          *slog.Logger
	ledger       Ledger
	publisher    Publisher
	recorder     Recorder
	now          func() time.Time
	holdDuration time.Duration
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithHoldDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.holdDuration = d
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

func New(log *slog.Logger, ledger Ledger, opts ...Option) *Service {
	s := &Service{
		log:          log.With(slog.String("component", "reservation")),
		ledger:       ledger,
		now:          func() time.Time { return time.Now().UTC() },
		holdDuration: HoldDuration,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateHold reserves one unit of the event's capacity for userID until the
// hold duration elapses.
func (s *Service) CreateHold(ctx context.Context, userID string, eventID uuid.UUID) (res *models.Reservation, err error) {
	const op = "reservation.CreateHold"

	defer func() { s.observe("create_hold", err) }()

	if userID == "" || eventID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	now := s.now()
	expiresAt := now.Add(s.holdDuration)
	hold := models.Reservation{
		ID:        uuid.New(),
		EventID:   eventID,
		UserID:    userID,
		State:     models.StateHold,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.ledger.InTx(ctx, func(tx storage.Tx) error {
		event, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return err
		}

		if !event.IsActive {
			return ErrEventInactive
		}

		reserved, err := tx.CountActive(ctx, eventID)
		if err != nil {
			return err
		}

		if reserved >= event.Capacity {
			return ErrNoCapacity
		}

		return tx.InsertHold(ctx, hold)
	})
	if err != nil {
		return nil, wrap(op, err)
	}

	s.log.Debug("hold created",
		slog.String("reservation_id", hold.ID.String()),
		slog.String("event_id", eventID.String()),
	)

	s.publish(ctx, models.NewReservationEvent(models.LifecycleHeld, hold, now))

	return &hold, nil
}

// ConfirmReservation turns the caller's unexpired hold into a permanent
// reservation.
func (s *Service) ConfirmReservation(ctx context.Context, userID string, reservationID uuid.UUID) (res *models.Reservation, err error) {
	const op = "reservation.ConfirmReservation"

	defer func() { s.observe("confirm", err) }()

	if userID == "" || reservationID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	now := s.now()

	var confirmed *models.Reservation

	err = s.ledger.InTx(ctx, func(tx storage.Tx) error {
		r, err := tx.LockReservation(ctx, reservationID)
		if err != nil {
			return err
		}

		if r.UserID != userID {
			return ErrNotOwner
		}

		if r.State != models.StateHold {
			return ErrWrongState
		}

		// a lapsed hold is dead even if the sweeper has not reached it yet
		if r.ExpiredAt(now) {
			return ErrHoldExpired
		}

		event, err := tx.LockEvent(ctx, r.EventID)
		if err != nil {
			return err
		}

		reserved, err := tx.CountActive(ctx, r.EventID)
		if err != nil {
			return err
		}

		// The hold is already part of reserved, so equality is legal here.
		if reserved > event.Capacity {
			return ErrOverbooked
		}

		confirmed, err = tx.ConfirmHold(ctx, reservationID, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrOverbooked) {
			s.log.Error("capacity invariant violated", slog.String("reservation_id", reservationID.String()))
		}
		return nil, wrap(op, err)
	}

	s.publish(ctx, models.NewReservationEvent(models.LifecycleConfirmed, *confirmed, now))

	return confirmed, nil
}

// CancelReservation deletes the caller's hold. Confirmed reservations are final.
func (s *Service) CancelReservation(ctx context.Context, userID string, reservationID uuid.UUID) (err error) {
	const op = "reservation.CancelReservation"

	defer func() { s.observe("cancel", err) }()

	if userID == "" || reservationID == uuid.Nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	r, err := s.ledger.GetReservation(ctx, reservationID)
	if err != nil {
		return wrap(op, err)
	}

	if r.UserID != userID {
		return fmt.Errorf("%s: %w", op, ErrNotOwner)
	}

	if r.State != models.StateHold {
		return fmt.Errorf("%s: %w", op, ErrWrongState)
	}

	deleted, err := s.ledger.DeleteHold(ctx, reservationID, userID)
	if err != nil {
		return wrap(op, err)
	}

	if !deleted {
		// lost a race with confirm or with the sweeper
		if _, err = s.ledger.GetReservation(ctx, reservationID); err != nil {
			return wrap(op, err)
		}
		return fmt.Errorf("%s: %w", op, ErrWrongState)
	}

	s.publish(ctx, models.NewReservationEvent(models.LifecycleCancelled, *r, s.now()))

	return nil
}

// GetEventAvailability is an unlocked snapshot. It can be stale as soon as it
// is returned.
func (s *Service) GetEventAvailability(ctx context.Context, eventID uuid.UUID) (av *models.Availability, err error) {
	const op = "reservation.GetEventAvailability"

	defer func() { s.observe("availability", err) }()

	if eventID == uuid.Nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidInput)
	}

	event, err := s.ledger.GetEvent(ctx, eventID)
	if err != nil {
		return nil, wrap(op, err)
	}

	hold, confirmed, err := s.ledger.CountReservations(ctx, eventID)
	if err != nil {
		return nil, wrap(op, err)
	}

	return &models.Availability{
		Event:          *event,
		HoldCount:      hold,
		ConfirmedCount: confirmed,
		Remaining:      max(0, event.Capacity-hold-confirmed),
	}, nil
}

func (s *Service) publish(ctx context.Context, ev models.ReservationEvent) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn("failed to publish reservation event",
			slog.String("type", string(ev.Type)),
			slog.String("reservation_id", ev.ReservationID.String()),
			sl.Err(err),
		)
	}
}

func (s *Service) observe(operation string, err error) {
	if s.recorder != nil {
		s.recorder.ObserveOperation(operation, err)
	}
}

// wrap tags everything that is not a domain rejection as ErrStorage.
func wrap(op string, err error) error {
	if IsRejection(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
