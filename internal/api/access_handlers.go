package api

import (
	"errors"
	"net/http"

	"github.com/medilink/telehealth-booking/internal/appointment"
)

func roomAccessHandler(gate AccessGate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, roomID, ok := actorAndID(w, r)
		if !ok {
			return
		}

		decision, err := gate.Check(r.Context(), actor, roomID)
		if err != nil {
			if errors.Is(err, appointment.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "room_not_found", "no appointment for this room")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		// The decision is the payload either way; a locked room is not an
		// HTTP error.
		writeJSON(w, http.StatusOK, decision)
	}
}
