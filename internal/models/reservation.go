package models

import (
	"time"

	"github.com/google/uuid"
)

type ReservationState string

const (
	StateHold      ReservationState = "HOLD"
	StateConfirmed ReservationState = "CONFIRMED"
)

// Reservation is one unit of an event's capacity. Cancelled and expired
// reservations are deleted, so a row is always either HOLD or CONFIRMED.
type Reservation struct {
	ID        uuid.UUID        `db:"id" json:"id"`
	EventID   uuid.UUID        `db:"event_id" json:"event_id"`
	UserID    string           `db:"user_id" json:"user_id"`
	State     ReservationState `db:"state" json:"state"`
	ExpiresAt *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// Active reports whether the reservation occupies capacity.
func (r Reservation) Active() bool {
	return r.State == StateHold || r.State == StateConfirmed
}

// ExpiredAt reports whether a hold has lapsed at now. Confirmed
// reservations never expire.
func (r Reservation) ExpiredAt(now time.Time) bool {
	if r.State != StateHold || r.ExpiresAt == nil {
		return false
	}

	return !r.ExpiresAt.After(now)
}
