// Package storage holds the contract shared by the capacity ledger drivers.
package storage

import (
	"context"
	"errors"
	"time"

	"eventReserver/internal/models"

	"github.com/google/uuid"
)

var (
	ErrEventNotFound       = errors.New("event not found")
	ErrReservationNotFound = errors.New("reservation not found")
)

// Tx is a ledger transaction. Row locks taken through it are held until the
// transaction commits or rolls back. Lock order is reservation before event.
type Tx interface {
	// LockEvent takes an exclusive lock on the event row and returns it.
	LockEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	// LockReservation takes an exclusive lock on the reservation row and returns it.
	LockReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	// CountActive counts HOLD and CONFIRMED reservations of the event.
	CountActive(ctx context.Context, eventID uuid.UUID) (int, error)
	InsertHold(ctx context.Context, r models.Reservation) error
	// ConfirmHold moves the reservation to CONFIRMED and clears its expiry.
	ConfirmHold(ctx context.Context, id uuid.UUID, now time.Time) (*models.Reservation, error)
}

// TxFunc runs inside a ledger transaction. A non-nil error rolls it back.
type TxFunc func(tx Tx) error
