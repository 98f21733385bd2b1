package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// RetryConfig defines backoff behavior for transient RPC failures.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialDelay:    500 * time.Millisecond,
	MaxDelay:        8 * time.Second,
	BackoffMultiple: 2.0,
}

// transientPatterns are error fragments that indicate the RPC endpoint is
// unreachable or rate-limited. These are worth retrying; anything else is
// surfaced to the operator immediately.
var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"i/o timeout",
	"eof",
	"429",
	"too many requests",
	"rate limit",
	"502",
	"503",
	"504",
	"temporarily unavailable",
	"no such host",
}

// isTransient reports whether an RPC error is worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// retryCall executes an RPC call with exponential backoff on transient
// errors, bounded by cfg.MaxAttempts. Non-transient errors fail immediately.
func retryCall[T any](ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) {
			return zero, err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoffDelay(attempt, cfg)
		logger.Warn("rpc call failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "err", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", op, cfg.MaxAttempts, lastErr)
}

func backoffDelay(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiple, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}
