package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/findez/inventory/internal/log"
)

const (
	// retryAttempts is the number of extra attempts after the first failure.
	retryAttempts = 2

	// retryBaseDelay is multiplied by the attempt number (linear backoff).
	retryBaseDelay = 200 * time.Millisecond
)

// retryablePatterns groups error substrings by category.
// Matched case-insensitively against err.Error().
//
// NOTE: String matching because pgx surfaces transient network failures
// as wrapped errors without a common sentinel.
var retryablePatterns = [][]string{
	{"connection reset", "connection refused", "broken pipe"}, // network errors
	{"timeout", "deadline exceeded", "temporary"},             // timeouts
	{"too many clients", "cannot acquire"},                    // pool pressure
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(errStr, sub) {
				return true
			}
		}
	}
	return false
}

// withRetry runs fn, retrying transient failures with linear backoff
// (base delay times the attempt number). Non-retryable errors fail
// immediately.
func withRetry(ctx context.Context, logger log.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s canceled during retry: %w", op, ctx.Err())
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			}
			logger.Debug("retrying operation", "op", op, "attempt", attempt+1, "error", lastErr)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryableError(err) {
			return err
		}
	}
	return fmt.Errorf("%s after %d retries: %w", op, retryAttempts, lastErr)
}
