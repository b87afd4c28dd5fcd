package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_RetryableOnlyForTransient(t *testing.T) {
	cause := errors.New("boom")

	assert.True(t, Wrap(KindTransient, "fetch failed", cause).Retryable)
	assert.False(t, Wrap(KindAuthorization, "forbidden", cause).Retryable)
	assert.False(t, Wrap(KindRequest, "bad request", cause).Retryable)
	assert.False(t, Timeout("too slow").Retryable)
}

func TestIsRetryable(t *testing.T) {
	t.Run("transient error", func(t *testing.T) {
		assert.True(t, IsRetryable(Transient("network down", nil)))
	})

	t.Run("wrapped transient error", func(t *testing.T) {
		err := fmt.Errorf("load comments: %w", Transient("network down", nil))
		assert.True(t, IsRetryable(err))
	})

	t.Run("validation error", func(t *testing.T) {
		assert.False(t, IsRetryable(Validation("Comment cannot be empty")))
	})

	t.Run("foreign error", func(t *testing.T) {
		assert.False(t, IsRetryable(errors.New("plain")))
	})

	t.Run("nil", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindRateLimit, KindOf(RateLimited("slow down")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.True(t, Is(fmt.Errorf("x: %w", Unauthorized("no")), KindAuthorization))
	assert.False(t, Is(nil, KindAuthorization))
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "fetch failed: boom", Transient("fetch failed", errors.New("boom")).Error())
	assert.Equal(t, "only message", New(KindInternal, "only message").Error())
	assert.Equal(t, "boom", (&Error{Kind: KindInternal, Err: errors.New("boom")}).Error())
	assert.Equal(t, "timeout", (&Error{Kind: KindTimeout}).Error())
}

func TestError_Unwrap(t *testing.T) {
	err := Transient("fetch failed", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Comment cannot be empty", Message(Validation("Comment cannot be empty")))
	assert.Equal(t, "fetch failed", Message(fmt.Errorf("load: %w", Transient("fetch failed", errors.New("x")))))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, DefaultMessage, Message(errors.New("")))
	assert.Empty(t, Message(nil))
}

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"network message", errors.New("Network request failed"), true},
		{"timeout message", errors.New("request timeout"), true},
		{"failed to fetch", errors.New("TypeError: Failed to fetch"), true},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"unrelated", errors.New("duplicate key value"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}
