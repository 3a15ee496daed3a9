package reservation

import (
	"errors"

	"eventReserver/internal/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrEventNotFound       = storage.ErrEventNotFound
	ErrReservationNotFound = storage.ErrReservationNotFound

	ErrNotOwner = errors.New("reservation belongs to another user")

	ErrEventInactive = errors.New("event not active")
	ErrNoCapacity    = errors.New("no capacity")
	ErrWrongState    = errors.New("reservation not in HOLD state")
	ErrHoldExpired   = errors.New("hold expired")
	ErrOverbooked    = errors.New("event overbooked")

	// ErrStorage marks failures of the ledger itself. The transaction has been
	// rolled back and the request may be retried.
	ErrStorage = errors.New("storage failure")
)

// IsRejection reports whether err is a definitive answer that retrying the
// same request will not change.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrEventNotFound, ErrReservationNotFound, ErrNotOwner,
		ErrEventInactive, ErrNoCapacity, ErrWrongState, ErrHoldExpired, ErrOverbooked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}
