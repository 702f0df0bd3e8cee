package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("loading post: %w", NotFound("Post", nil))

	assert.True(t, Is(err, "NOT_FOUND"))
	assert.True(t, IsNotFound(err))
	assert.False(t, Is(err, "INTERNAL_ERROR"))
	assert.False(t, IsNotFound(stderrors.New("plain")))
}

func TestInternalUnwrapsCause(t *testing.T) {
	cause := stderrors.New("deadline exceeded")
	err := Internal("Failed to list posts", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Contains(t, err.Error(), "deadline exceeded")
}

func TestTooManyRequestsCarriesWait(t *testing.T) {
	err := TooManyRequests("Slow down", 1500*time.Millisecond)

	assert.Equal(t, http.StatusTooManyRequests, err.Status)
	assert.Equal(t, 1500*time.Millisecond, err.RetryAfter)
}

func TestValidationKeepsFields(t *testing.T) {
	err := Validation("Invalid listing", map[string]string{"price": "price must be greater than 0"})

	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, "price must be greater than 0", err.Fields["price"])
}
