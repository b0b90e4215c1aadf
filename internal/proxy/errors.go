// Package proxy implements the CDN relay data plane: it replays captured
// upstream auth headers and streams media bodies through to clients.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
)

// Error represents a structured relay error response.
type Error struct {
	HTTPCode int
	Code     string // X-Streamgate-Error header value
	Message  string
	// Blocked marks upstream refusals that should trigger egress failover.
	Blocked bool
	// UpstreamStatus carries the origin's status code when the failure was
	// an HTTP-level refusal rather than a transport error.
	UpstreamStatus int
}

func (e *Error) Error() string {
	if e.UpstreamStatus != 0 {
		return fmt.Sprintf("proxy: %s (upstream %d)", e.Code, e.UpstreamStatus)
	}
	return "proxy: " + e.Code
}

var (
	ErrUpstreamTimeout = &Error{
		HTTPCode: http.StatusGatewayTimeout,
		Code:     "UPSTREAM_TIMEOUT",
		Message:  "Upstream connection or response timed out",
	}
	ErrUpstreamUnavailable = &Error{
		HTTPCode: http.StatusBadGateway,
		Code:     "UPSTREAM_UNAVAILABLE",
		Message:  "Failed to download media from source",
	}
	ErrInternal = &Error{
		HTTPCode: http.StatusInternalServerError,
		Code:     "INTERNAL_ERROR",
		Message:  "Internal relay error",
	}
	// ErrClientGone marks a relay the client abandoned before the first
	// byte. Nothing can be written back; it exists so request logs do not
	// record the abort as a success. 499 follows the nginx convention.
	ErrClientGone = &Error{
		HTTPCode: 499,
		Code:     "CLIENT_CLOSED_REQUEST",
		Message:  "Client closed the request before the relay started",
	}
)

// WriteError writes a standardised relay error response. Safe to call only
// before the body has started streaming.
func WriteError(w http.ResponseWriter, pe *Error) {
	w.Header().Set("X-Streamgate-Error", pe.Code)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(pe.HTTPCode)
	w.Write([]byte(pe.Message))
}

// classifyTransportError maps a transport-level upstream failure to an
// Error. context.Canceled is the client hanging up, not an upstream fault.
func classifyTransportError(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return ErrClientGone
	}
	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return ErrUpstreamTimeout
	}
	return ErrUpstreamUnavailable
}

// statusError builds the Error for a non-2xx upstream response. Statuses in
// blockStatuses are flagged so callers can kick off failover.
func statusError(status int, blockStatuses map[int]bool) *Error {
	return &Error{
		HTTPCode:       http.StatusBadGateway,
		Code:           "UPSTREAM_UNAVAILABLE",
		Message:        fmt.Sprintf("Source responded with status %d", status),
		Blocked:        blockStatuses[status],
		UpstreamStatus: status,
	}
}
