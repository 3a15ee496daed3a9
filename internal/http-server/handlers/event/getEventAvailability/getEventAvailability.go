package getEventAvailability

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"eventReserver/internal/lib/api/response"
	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/models"
	"eventReserver/internal/reservation"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
)

type AvailabilityResponse struct {
	response.Response
	*models.Availability
}

//go:generate go run github.com/vektra/mockery/v2@v2.51.1 --name=AvailabilityGetter
type AvailabilityGetter interface {
	GetEventAvailability(ctx context.Context, eventID uuid.UUID) (*models.Availability, error)
}

func New(log *slog.Logger, getter AvailabilityGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.event.getEventAvailability.New"

		log := log.With(slog.String("op", op))

		idStr := chi.URLParam(r, "id")
		if idStr == "" {
			log.Error("event id is required")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("event id is required"))
			return
		}

		eventID, err := uuid.Parse(idStr)
		if err != nil {
			log.Error("invalid event id format", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid event id format"))
			return
		}

		log = log.With(slog.String("event_id", eventID.String()))

		av, err := getter.GetEventAvailability(r.Context(), eventID)
		if err != nil {
			log.Error("failed to get event availability", sl.Err(err))

			if errors.Is(err, reservation.ErrEventNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("event not found"))
				return
			}

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to get event availability"))
			return
		}

		log.Debug("event availability received", slog.Int("remaining", av.Remaining))

		responseOK(w, r, av)
	}
}

func responseOK(w http.ResponseWriter, r *http.Request, av *models.Availability) {
	render.JSON(w, r, AvailabilityResponse{
		Response:     response.OK(),
		Availability: av,
	})
}
