package chatify_errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, "ROOM_NOT_FOUND", Code(fmt.Errorf("load: %w", ErrRoomNotFound)))
	assert.Equal(t, "INVALID_REQUEST", Code(ErrInvalidInput))
	assert.Equal(t, "INTERNAL_ERROR", Code(errors.New("boom")))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: password authentication failed")))
	assert.Equal(t, "bad [REDACTED]: invalid input", PublicMessage(fmt.Errorf("bad token: %w", ErrInvalidInput)))
	assert.Equal(t, "an error occurred", Sanitize(nil))
}
