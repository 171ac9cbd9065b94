package llm

import (
	"context"
	"strings"
	"time"

	regaierrors "regai/internal/errors"
	"regai/internal/logging"
)

// retryClient wraps a Client with a bounded-retry policy. Rate limits and
// transient API failures are retried with exponential backoff; everything
// else propagates immediately.
type retryClient struct {
	underlying  Client
	retryConfig regaierrors.RetryConfig
	logger      logging.Logger
}

// DefaultRetryConfig is the policy for generative calls: up to 5 attempts,
// backoff starting at 4s capped at 10s.
func DefaultRetryConfig() regaierrors.RetryConfig {
	return regaierrors.RetryConfig{
		MaxAttempts:  4,
		BaseDelay:    4 * time.Second,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.25,
	}
}

// NewRetryClient wraps an existing client with retry logic.
func NewRetryClient(client Client, retryConfig regaierrors.RetryConfig) Client {
	return &retryClient{
		underlying:  client,
		retryConfig: retryConfig,
		logger:      logging.NewComponentLogger("llm-retry"),
	}
}

func (c *retryClient) Model() string { return c.underlying.Model() }

func (c *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := regaierrors.RetryWithResult(ctx, c.retryConfig, func(ctx context.Context) (*CompletionResponse, error) {
		response, err := c.underlying.Complete(ctx, req)
		if err != nil {
			return nil, classifyError(err)
		}
		return response, nil
	}, c.logger)

	if err != nil {
		c.logger.Warn("completion failed after retries (took %v): %v", time.Since(start).Round(time.Second), err)
		return nil, err
	}
	return resp, nil
}

// classifyError marks provider errors so the retry policy treats rate limits
// and server-side failures as transient and everything else as final.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	lowerErr := strings.ToLower(err.Error())

	if strings.Contains(lowerErr, "429") || strings.Contains(lowerErr, "rate limit") {
		return regaierrors.NewTransientError(err, "API rate limit reached, retrying with backoff")
	}
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(lowerErr, code) {
			return regaierrors.NewTransientError(err, "server error ("+code+"), retrying")
		}
	}
	if strings.Contains(lowerErr, "timeout") || strings.Contains(lowerErr, "deadline exceeded") {
		return regaierrors.NewTransientError(err, "request timed out, retrying with backoff")
	}

	if strings.Contains(lowerErr, "401") || strings.Contains(lowerErr, "unauthorized") {
		return regaierrors.NewPermanentError(err, "authentication failed, check the API key")
	}
	if strings.Contains(lowerErr, "404") || strings.Contains(lowerErr, "not found") {
		return regaierrors.NewPermanentError(err, "model or endpoint not found")
	}
	if strings.Contains(lowerErr, "400") || strings.Contains(lowerErr, "bad request") {
		return regaierrors.NewPermanentError(err, "invalid request parameters")
	}

	return err
}
