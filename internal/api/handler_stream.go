package api

import (
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/gateway"
	"github.com/streamgate-proxy/streamgate/internal/proxy"
	"github.com/streamgate-proxy/streamgate/internal/requestlog"
)

// HandleStream handles GET /stream?id=<session>&format=<id>. It resolves
// the session descriptor and relays the CDN response with the captured
// auth context reattached.
func HandleStream(gw *gateway.Gateway, streamer *proxy.Streamer, logs *requestlog.Service, egress string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := newRecorder(logs, r, "stream", egress)
		q := r.URL.Query()
		id := q.Get("id")
		formatID := q.Get("format")
		rec.entry.FormatID = formatID

		if id == "" {
			rec.emit(http.StatusBadRequest, "INVALID_ARGUMENT")
			WriteError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "id parameter is required")
			return
		}

		req, serr := gw.ResolveSession(r.Context(), id, formatID)
		if serr != nil {
			rec.emit(serr.Status, serr.Code)
			writeServiceError(w, serr)
			return
		}

		if pe := streamer.Stream(w, r, req); pe != nil {
			if pe.Blocked {
				gw.NotifyBlock()
			}
			rec.emit(pe.HTTPCode, pe.Code)
			if pe != proxy.ErrClientGone {
				proxy.WriteError(w, pe)
			}
			return
		}
		rec.emit(http.StatusOK, "")
	}
}

// HandleDownload handles GET /download?data=<token>. The token carries the
// CDN URL, the captured auth headers and filename metadata; no session is
// involved.
func HandleDownload(gw *gateway.Gateway, streamer *proxy.Streamer, logs *requestlog.Service, egress string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := newRecorder(logs, r, "download", egress)

		req, serr := gw.ResolveToken(r.URL.Query().Get("data"))
		if serr != nil {
			rec.emit(serr.Status, serr.Code)
			writeServiceError(w, serr)
			return
		}

		if pe := streamer.Stream(w, r, req); pe != nil {
			if pe.Blocked {
				gw.NotifyBlock()
			}
			rec.emit(pe.HTTPCode, pe.Code)
			if pe != proxy.ErrClientGone {
				proxy.WriteError(w, pe)
			}
			return
		}
		rec.emit(http.StatusOK, "")
	}
}
