package api

import (
	"errors"
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/vpn"
)

// HandleVPNStatus returns a handler for GET /api/v1/vpn/status.
func HandleVPNStatus(fleet *vpn.Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"instances": fleet.Status(r.Context()),
		})
	})
}

// HandleVPNReconnect returns a handler for
// POST /api/v1/vpn/{id}/actions/reconnect.
func HandleVPNReconnect(fleet *vpn.Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := fleet.Reconnect(r.Context(), id); err != nil {
			writeVPNError(w, err)
			return
		}
		st, _ := fleet.LastStatus(id)
		WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "reconnected",
			"status":  st,
		})
	})
}

// HandleVPNRotate returns a handler for
// POST /api/v1/vpn/{id}/actions/rotate. An optional country query parameter
// picks the exit country; without it the fleet's rotation order decides.
func HandleVPNRotate(fleet *vpn.Fleet) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		country := r.URL.Query().Get("country")
		if err := fleet.Rotate(r.Context(), id, country); err != nil {
			writeVPNError(w, err)
			return
		}
		st, _ := fleet.LastStatus(id)
		WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "rotated",
			"status":  st,
		})
	})
}

func writeVPNError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vpn.ErrUnknownInstance):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown vpn instance")
	case errors.Is(err, vpn.ErrCooldownActive):
		WriteError(w, http.StatusTooManyRequests, "COOLDOWN_ACTIVE", "a reconnect happened too recently")
	case errors.Is(err, vpn.ErrMaxAttemptsReached):
		WriteError(w, http.StatusConflict, "MAX_ATTEMPTS_REACHED", "reconnect attempt ceiling reached")
	default:
		WriteError(w, http.StatusBadGateway, "VPN_CONTROL_FAILED", err.Error())
	}
}
