package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	regaierrors "regai/internal/errors"
)

func fastRetryConfig() regaierrors.RetryConfig {
	return regaierrors.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestRetryClientRetriesRateLimits(t *testing.T) {
	calls := 0
	mock := NewMockClient()
	for i := 0; i < 3; i++ {
		mock.Respond(func(CompletionRequest) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("API error 429: rate limit exceeded")
			}
			return "recovered", nil
		})
	}

	client := NewRetryClient(mock, fastRetryConfig())
	resp, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 3, calls)
}

func TestRetryClientRetriesServerErrors(t *testing.T) {
	calls := 0
	mock := NewMockClient()
	for i := 0; i < 2; i++ {
		mock.Respond(func(CompletionRequest) (string, error) {
			calls++
			if calls == 1 {
				return "", errors.New("API error 503: service unavailable")
			}
			return "ok", nil
		})
	}

	client := NewRetryClient(mock, fastRetryConfig())
	resp, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 2, calls)
}

func TestRetryClientDoesNotRetryAuthErrors(t *testing.T) {
	calls := 0
	mock := NewMockClient().Respond(func(CompletionRequest) (string, error) {
		calls++
		return "", errors.New("API error 401: invalid API key")
	})

	client := NewRetryClient(mock, fastRetryConfig())
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryClientGivesUpAfterBudget(t *testing.T) {
	calls := 0
	mock := NewMockClient()
	for i := 0; i < 10; i++ {
		mock.Respond(func(CompletionRequest) (string, error) {
			calls++
			return "", errors.New("API error 429: rate limit exceeded")
		})
	}

	client := NewRetryClient(mock, fastRetryConfig())
	_, err := client.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 4, calls, "MaxAttempts retries plus the initial attempt")
}

func TestRetryClientPreservesModelName(t *testing.T) {
	client := NewRetryClient(NewMockClient("x"), DefaultRetryConfig())
	assert.Equal(t, "mock", client.Model())
}

func TestDefaultRetryConfigBounds(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 4, cfg.MaxAttempts, "five total attempts")
	assert.Equal(t, 4*time.Second, cfg.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.MaxDelay)
}
