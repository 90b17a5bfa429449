package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/findez/inventory/internal/log"
)

func TestRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"timeout", errors.New("dial: i/o TIMEOUT"), true},
		{"pool pressure", errors.New("FATAL: sorry, too many clients already"), true},
		{"constraint violation", errors.New("duplicate key value violates unique constraint"), false},
		{"not found", ErrNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryableError(tt.err))
		})
	}
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	logger := log.NewNop()

	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, logger, "op", func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries transient errors", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, logger, "op", func() error {
			calls++
			if calls < 3 {
				return errors.New("connection reset by peer")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("fails fast on permanent errors", func(t *testing.T) {
		calls := 0
		permanent := errors.New("syntax error at or near")
		err := withRetry(ctx, logger, "op", func() error {
			calls++
			return permanent
		})
		assert.ErrorIs(t, err, permanent)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := withRetry(ctx, logger, "op", func() error {
			calls++
			return errors.New("timeout")
		})
		assert.Error(t, err)
		assert.Equal(t, retryAttempts+1, calls)
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		err := withRetry(canceled, logger, "op", func() error {
			return errors.New("timeout")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
