package api

import (
	"encoding/json"
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
)

type extractRequest struct {
	URL string `json:"url"`
}

// HandleExtract handles POST /extract. The response carries only
// gateway-relative media links; CDN URLs never leave the server in clear.
func HandleExtract(gw *gateway.Gateway, logs *requestlog.Service, egress string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := newRecorder(logs, r, "extract", egress)

		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rec.emit(http.StatusBadRequest, "INVALID_ARGUMENT")
			WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "request body must be JSON with a url field")
			return
		}
		rec.entry.SourceURL = req.URL

		resp, serr := gw.Extract(r.Context(), req.URL)
		if serr != nil {
			rec.emit(serr.Status, serr.Code)
			writeServiceError(w, serr)
			return
		}

		rec.entry.Platform = resp.Data.Platform
		rec.entry.CacheHit = resp.CacheHit
		rec.emit(http.StatusOK, "")
		WriteJSON(w, http.StatusOK, resp)
	}
}
