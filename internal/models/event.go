package models

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Capacity  int        `db:"capacity" json:"capacity"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Availability is a point-in-time projection of an event's capacity.
type Availability struct {
	Event          Event `json:"event"`
	HoldCount      int   `json:"hold_count"`
	ConfirmedCount int   `json:"confirmed_count"`
	Remaining      int   `json:"remaining_capacity"`
}
