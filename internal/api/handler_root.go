package api

import (
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/buildinfo"
)

// HandleRoot returns a handler for GET /. It serves a small service
// descriptor so browser clients can discover the endpoints.
func HandleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"service": "streamgate",
			"version": buildinfo.Version,
			"endpoints": map[string]string{
				"extract":   "POST /extract",
				"stream":    "GET /stream?id=<session>&format=<id>",
				"download":  "GET /download?data=<token>",
				"slideshow": "GET /download-slideshow?url=<token>",
				"health":    "GET /healthz",
			},
		})
	}
}
