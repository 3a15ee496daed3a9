package confirmReservation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"eventReserver/internal/http-server/middleware/auth"
	"eventReserver/internal/lib/api/response"
	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/models"
	"eventReserver/internal/reservation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type ConfirmResponse struct {
	response.Response
	Reservation *models.Reservation `json:"reservation"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=ReservationConfirmer
type ReservationConfirmer interface {
	ConfirmReservation(ctx context.Context, userID string, reservationID uuid.UUID) (*models.Reservation, error)
}

func New(log *slog.Logger, confirmer ReservationConfirmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reservation.confirmReservation.New"

		log := log.With(slog.String("op", op))

		userID, ok := auth.UserID(r.Context())
		if !ok {
			log.Error("user id is missing")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}

		idStr := chi.URLParam(r, "id")
		if idStr == "" {
			log.Error("reservation id is required")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("reservation id is required"))
			return
		}

		reservationID, err := uuid.Parse(idStr)
		if err != nil {
			log.Error("invalid reservation id format", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid reservation id format"))
			return
		}

		log = log.With(slog.String("reservation_id", reservationID.String()), slog.String("user_id", userID))

		confirmed, err := confirmer.ConfirmReservation(r.Context(), userID, reservationID)
		if err != nil {
			log.Error("failed to confirm reservation", sl.Err(err))

			switch {
			case errors.Is(err, reservation.ErrReservationNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("reservation not found"))
			case errors.Is(err, reservation.ErrEventNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("event not found"))
			case errors.Is(err, reservation.ErrNotOwner):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("not owner"))
			case errors.Is(err, reservation.ErrWrongState):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("reservation not in HOLD state"))
			case errors.Is(err, reservation.ErrHoldExpired):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("hold expired"))
			case errors.Is(err, reservation.ErrOverbooked):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("overbooked"))
			case errors.Is(err, reservation.ErrInvalidInput):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("invalid request"))
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("failed to confirm reservation"))
			}
			return
		}

		log.Info("reservation confirmed")

		responseOK(w, r, confirmed)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, confirmed *models.Reservation) {
	render.JSON(w, r, ConfirmResponse{
		Response:    response.OK(),
		Reservation: confirmed,
	})
}
