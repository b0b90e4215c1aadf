package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/streamgate-proxy/streamgate/internal/extract"
	"github.com/streamgate-proxy/streamgate/internal/token"
)

// ServiceError is a client-facing gateway failure with a stable code.
type ServiceError struct {
	Status  int
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("gateway: %s (%d)", e.Code, e.Status)
}

var (
	ErrUnsupportedURL = &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "UNSUPPORTED_URL",
		Message: "Unsupported URL. Only TikTok and X (Twitter) URLs are supported.",
	}
	ErrMissingURL = &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "MISSING_URL",
		Message: "URL parameter is required",
	}
	ErrSessionExpired = &ServiceError{
		Status:  http.StatusGone,
		Code:    "SESSION_EXPIRED",
		Message: "Session expired or not found. Please extract again.",
	}
	ErrLinkExpired = &ServiceError{
		Status:  http.StatusGone,
		Code:    "LINK_EXPIRED",
		Message: "Download link expired. Please extract again.",
	}
	ErrInvalidToken = &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_TOKEN",
		Message: "Download token is malformed",
	}
	ErrInvalidPayload = &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "INVALID_PAYLOAD",
		Message: "Invalid download data: missing url, author or type",
	}
	ErrMissingDownloadURL = &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "MISSING_DOWNLOAD_URL",
		Message: "No download URL provided",
	}
	ErrNoSlideshowAssets = &ServiceError{
		Status:  http.StatusNotFound,
		Code:    "NO_SLIDESHOW_ASSETS",
		Message: "Post has no images or audio to build a slideshow from",
	}
	ErrInternal = &ServiceError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	}
)

// FormatNotFound reports a session that exists but lacks the requested
// format id.
func FormatNotFound(formatID string) *ServiceError {
	return &ServiceError{
		Status:  http.StatusBadRequest,
		Code:    "FORMAT_NOT_FOUND",
		Message: fmt.Sprintf("Format %q not found in session", formatID),
	}
}

// mapExtractError translates classified extractor failures into
// client-facing errors.
func mapExtractError(err error) *ServiceError {
	var exErr *extract.Error
	if !errors.As(err, &exErr) {
		return ErrInternal
	}
	switch exErr.Kind {
	case extract.KindNotFound:
		return &ServiceError{
			Status:  http.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "Video not found or may be private/deleted",
		}
	case extract.KindForbidden:
		return &ServiceError{
			Status:  http.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "Access forbidden - video may be private or region-restricted",
		}
	case extract.KindAuthRequired:
		return &ServiceError{
			Status:  http.StatusUnauthorized,
			Code:    "AUTH_REQUIRED",
			Message: "This content requires login/authentication",
		}
	case extract.KindUnsupported:
		return ErrUnsupportedURL
	case extract.KindTimeout:
		return &ServiceError{
			Status:  http.StatusGatewayTimeout,
			Code:    "EXTRACTION_TIMEOUT",
			Message: "Extraction timed out. Please try again.",
		}
	default:
		return &ServiceError{
			Status:  http.StatusInternalServerError,
			Code:    "EXTRACTION_FAILED",
			Message: "Failed to extract media information",
		}
	}
}

// mapTokenError translates codec failures into client-facing errors.
func mapTokenError(err error) *ServiceError {
	if errors.Is(err, token.ErrExpired) {
		return ErrLinkExpired
	}
	return ErrInvalidToken
}
