package gateway

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig configures exponential backoff for idempotent reads
type RetryConfig struct {
	MaxRetries int           // retry attempts after the first call
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // cap on any single delay
	Multiplier float64       // growth factor per attempt
	Jitter     bool          // randomise delays by up to 25%
}

// DefaultRetryConfig returns the backoff used unless WithRetry overrides it
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  300 * time.Millisecond,
		MaxDelay:   3 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// NoRetry disables retries
func NoRetry() RetryConfig {
	return RetryConfig{}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	d := float64(r.BaseDelay) * math.Pow(r.Multiplier, float64(attempt))
	if r.MaxDelay > 0 && d > float64(r.MaxDelay) {
		d = float64(r.MaxDelay)
	}
	if r.Jitter {
		d += d * 0.25 * rand.Float64()
	}
	return time.Duration(d)
}

// retryable reports whether a failed read is worth repeating. Client errors are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	return true
}

func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if err = fn(); err == nil || !retryable(err) || attempt == c.retry.MaxRetries {
			return err
		}

		wait := c.retry.delay(attempt)
		c.log.Info("retrying backend read",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
	return err
}
