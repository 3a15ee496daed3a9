package cancelReservation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"eventReserver/internal/http-server/middleware/auth"
	"eventReserver/internal/lib/api/response"
	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/reservation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=ReservationCanceller
type ReservationCanceller interface {
	CancelReservation(ctx context.Context, userID string, reservationID uuid.UUID) error
}

func New(log *slog.Logger, canceller ReservationCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reservation.cancelReservation.New"

		log := log.With(slog.String("op", op))

		userID, ok := auth.UserID(r.Context())
		if !ok {
			log.Error("user id is missing")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}

		reservationID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			log.Error("invalid reservation id format", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid reservation id format"))
			return
		}

		log = log.With(slog.String("reservation_id", reservationID.String()), slog.String("user_id", userID))

		if err = canceller.CancelReservation(r.Context(), userID, reservationID); err != nil {
			log.Error("failed to cancel reservation", sl.Err(err))

			switch {
			case errors.Is(err, reservation.ErrReservationNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("reservation not found"))
			case errors.Is(err, reservation.ErrNotOwner):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("not owner"))
			case errors.Is(err, reservation.ErrWrongState):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("only held reservations can be cancelled"))
			case errors.Is(err, reservation.ErrInvalidInput):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("invalid request"))
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("failed to cancel reservation"))
			}
			return
		}

		log.Info("reservation cancelled")

		render.JSON(w, r, response.OK())
	}
}
