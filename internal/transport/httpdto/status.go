package httpdto

import (
	"errors"
	"net/http"

	chatify_errors "chatify-realtime/pkg/errors"
)

// StatusFor maps a domain error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chatify_errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, chatify_errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, chatify_errors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, chatify_errors.ErrRoomNotFound),
		errors.Is(err, chatify_errors.ErrMessageNotFound),
		errors.Is(err, chatify_errors.ErrNoSuchPage),
		errors.Is(err, chatify_errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatify_errors.ErrConflict),
		errors.Is(err, chatify_errors.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chatify_errors.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, chatify_errors.ErrStoreUnavailable),
		errors.Is(err, chatify_errors.ErrSessionEvicted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
