package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("x"), "rate limited"), true},
		{"explicit permanent", NewPermanentError(errors.New("x"), "bad key"), false},
		{"wrapped transient", fmt.Errorf("call failed: %w", NewTransientError(nil, "429")), true},
		{"wrapped permanent", fmt.Errorf("call failed: %w", NewPermanentError(nil, "401")), false},
		{"rate limit status in message", errors.New("API error 429: too many requests"), true},
		{"server error in message", errors.New("HTTP 503: unavailable"), true},
		{"client error in message", errors.New("API error 404: not found"), false},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"plain error", errors.New("something else entirely"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetryWithResultSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := RetryWithResult(context.Background(), fastConfig(4), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(nil, "rate limited")
		}
		return "done", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "done", result)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResultStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastConfig(4), func(context.Context) (int, error) {
		calls++
		return 0, NewPermanentError(nil, "invalid API key")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent errors must not be retried")
}

func TestRetryWithResultExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastConfig(2), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(nil, "still rate limited")
	}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, 3, calls, "MaxAttempts retries plus the initial attempt")
}

func TestRetryWithResultRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithResult(ctx, fastConfig(4), func(context.Context) (int, error) {
		calls++
		return 0, nil
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestRetryPlain(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(3), func(context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(nil, "blip")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestBackoffDelayCapped(t *testing.T) {
	config := RetryConfig{BaseDelay: 4 * time.Second, MaxDelay: 10 * time.Second}

	assert.Equal(t, 4*time.Second, backoffDelay(0, config))
	assert.Equal(t, 8*time.Second, backoffDelay(1, config))
	assert.Equal(t, 10*time.Second, backoffDelay(2, config))
	assert.Equal(t, 10*time.Second, backoffDelay(5, config))
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	config := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, JitterFactor: 0.25}
	for i := 0; i < 100; i++ {
		d := backoffDelay(0, config)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
