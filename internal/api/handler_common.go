package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamgate-proxy/streamgate/internal/requestlog"
)

// clientIP extracts the requester address, preferring the first
// X-Forwarded-For hop when a reverse proxy sits in front.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// recorder accumulates one request log entry across a handler's lifetime.
type recorder struct {
	logs  *requestlog.Service
	entry requestlog.Entry
	start time.Time
}

func newRecorder(logs *requestlog.Service, r *http.Request, endpoint, egress string) *recorder {
	return &recorder{
		logs: logs,
		entry: requestlog.Entry{
			ID:             uuid.NewString(),
			ClientIP:       clientIP(r),
			Endpoint:       endpoint,
			EgressInstance: egress,
		},
		start: time.Now(),
	}
}

// emit finalizes and enqueues the entry. Safe with a nil log service.
func (rec *recorder) emit(status int, errorCode string) {
	if rec.logs == nil {
		return
	}
	rec.entry.TsNs = rec.start.UnixNano()
	rec.entry.HTTPStatus = status
	rec.entry.ErrorCode = errorCode
	rec.entry.DurationNs = time.Since(rec.start).Nanoseconds()
	rec.logs.Emit(rec.entry)
}
