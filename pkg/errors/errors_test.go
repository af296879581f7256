package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckErrorFormatting(t *testing.T) {
	err := NewNetworkPermanent("https://example.com/p", 404, nil)
	assert.Equal(t, "[network_permanent] https://example.com/p: unexpected status code: 404", err.Error())
	assert.Equal(t, 404, err.StatusCode)

	wrapped := NewStoreWrite("https://example.com/p", "append observation", stderrors.New("disk full"))
	assert.Contains(t, wrapped.Error(), "disk full")
	assert.Equal(t, "disk full", stderrors.Unwrap(wrapped).Error())

	cfg := NewConfiguration("bad interval", nil)
	assert.Contains(t, cfg.Error(), "[configuration] -")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewNetworkTransient("u", 503, nil).IsRetryable())
	assert.False(t, NewNetworkPermanent("u", 404, nil).IsRetryable())
	assert.False(t, NewRateLimit("u", 0).IsRetryable())
	assert.False(t, NewRetriesExhausted("u", 5, nil).IsRetryable())
}

func TestTypeOfAndIs(t *testing.T) {
	last := NewNetworkTransient("u", 503, nil)
	exhausted := NewRetriesExhausted("u", 5, last)
	wrapped := fmt.Errorf("check failed: %w", exhausted)

	assert.Equal(t, ErrorTypeRetriesExhausted, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeRetriesExhausted))
	assert.True(t, Is(wrapped, ErrorTypeNetworkTransient))
	assert.False(t, Is(wrapped, ErrorTypeNetworkPermanent))
	assert.Equal(t, 5, exhausted.Attempts)

	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
	assert.False(t, Is(nil, ErrorTypeInternal))
}

func TestUserMessagesAreDistinct(t *testing.T) {
	errs := []*CheckError{
		NewInvalidURL("u"),
		NewUnsupportedPlatform("walmart"),
		NewNetworkPermanent("u", 404, nil),
		NewRateLimit("u", 0),
		NewExtractionFailed("u", "no price"),
		NewInvalidPrice("u", -1),
		NewStoreWrite("u", "x", nil),
		NewNotification("u", nil),
		NewCancelled("u", nil),
		NewInternal("u", "panic", nil),
	}

	seen := make(map[string]ErrorType)
	for _, e := range errs {
		msg := e.UserMessage()
		assert.NotEmpty(t, msg)
		if prev, ok := seen[msg]; ok {
			t.Errorf("%s and %s share user message %q", prev, e.Type, msg)
		}
		seen[msg] = e.Type
	}

	assert.Contains(t, NewNetworkPermanent("u", 403, nil).UserMessage(), "403")
}
