// Package api implements the HTTP surface of the gateway: the public
// extraction and download endpoints plus the authenticated admin API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/gateway"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the standard error envelope. Clients branch on ErrorCode;
// Message is for humans.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// WriteError writes a standard error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{
		Success:   false,
		Message:   message,
		ErrorCode: code,
	})
}

// writeServiceError maps gateway errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, serr *gateway.ServiceError) {
	if serr == nil {
		serr = gateway.ErrInternal
	}
	WriteError(w, serr.Status, serr.Code, serr.Message)
}
