package createHold

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

type HoldResponse struct {
	response.Response
	Reservation *models.Reservation `json:"reservation"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=HoldCreator
type HoldCreator interface {
	CreateHold(ctx context.Context, userID string, eventID uuid.UUID) (*models.Reservation, error)
}

func New(log *slog.Logger, holds HoldCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reservation.createHold.New"

		log := log.With(
			slog.String("op", op),
		)

		userID, ok := auth.UserID(r.Context())
		if !ok {
			log.Error("user id is missing")
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("unauthorized"))
			return
		}

		eventIDStr := chi.URLParam(r, "id")
		if eventIDStr == "" {
			log.Error("event id is required")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("event id is required"))
			return
		}

		eventID, err := uuid.Parse(eventIDStr)
		if err != nil {
			log.Error("invalid event id format", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid event id format"))
			return
		}

		log = log.With(slog.String("event_id", eventID.String()), slog.String("user_id", userID))

		hold, err := holds.CreateHold(r.Context(), userID, eventID)
		if err != nil {
			log.Error("failed to create hold", sl.Err(err))

			switch {
			case errors.Is(err, reservation.ErrEventNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("event not found"))
			case errors.Is(err, reservation.ErrEventInactive):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("event not active"))
			case errors.Is(err, reservation.ErrNoCapacity):
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, response.Error("no capacity"))
			case errors.Is(err, reservation.ErrInvalidInput):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("invalid request"))
			default:
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("failed to create hold"))
			}
			return
		}

		log.Info("hold created", slog.String("reservation_id", hold.ID.String()))

		responseCreated(w, r, hold)
	}
}

func responseCreated(w http.ResponseWriter, r *http.Request, hold *models.Reservation) {
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, HoldResponse{
		Response:    response.OK(),
		Reservation: hold,
	})
}
