package models

import (
	"time"

	"github.com/google/uuid"
)

type LifecycleType string

const (
	LifecycleHeld      LifecycleType = "reservation.held"
	LifecycleConfirmed LifecycleType = "reservation.confirmed"
	LifecycleCancelled LifecycleType = "reservation.cancelled"
	LifecycleExpired   LifecycleType = "reservation.expired"
)

// ReservationEvent is the audit record emitted after a reservation transition
// commits. Deleted rows leave no trace in the ledger, so this is the history.
type ReservationEvent struct {
	Type          LifecycleType `json:"type"`
	ReservationID uuid.UUID     `json:"reservation_id"`
	EventID       uuid.UUID     `json:"event_id"`
	UserID        string        `json:"user_id"`
	At            time.Time     `json:"at"`
}

func NewReservationEvent(t LifecycleType, r Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          t,
		ReservationID: r.ID,
		EventID:       r.EventID,
		UserID:        r.UserID,
		At:            at,
	}
}
