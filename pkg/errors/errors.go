package chatify_errors

import (
	"errors"
	"regexp"
)

// Room and log errors
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrNoSuchPage       = errors.New("no such page")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrPublishFailed    = errors.New("publish failed")
	ErrSessionEvicted   = errors.New("room session evicted")
)

// Common errors
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrRateLimited       = errors.New("rate limited")
)

// Code maps an error to the stable code reported to clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrMessageNotFound):
		return "MESSAGE_NOT_FOUND"
	case errors.Is(err, ErrNoSuchPage):
		return "NO_SUCH_PAGE"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, ErrPublishFailed):
		return "PUBLISH_FAILED"
	case errors.Is(err, ErrSessionEvicted):
		return "SESSION_EVICTED"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_REQUEST"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL_ERROR"
	}
}

var sensitiveWords = regexp.MustCompile(`(?i)token|password|secret|key|credential`)

// Sanitize returns an error message that is safe to hand to a client.
func Sanitize(err error) string {
	if err == nil {
		return "an error occurred"
	}
	msg := err.Error()
	if msg == "" {
		return "an error occurred"
	}
	return sensitiveWords.ReplaceAllString(msg, "[REDACTED]")
}

// PublicMessage is Sanitize for errors with a known code and a generic text
// for everything else.
func PublicMessage(err error) string {
	if Code(err) == "INTERNAL_ERROR" {
		return "internal server error"
	}
	return Sanitize(err)
}
