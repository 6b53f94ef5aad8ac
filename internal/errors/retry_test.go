package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsBudgetAndReturnsLastError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	attempts := 0

	err := Retry(context.Background(), cfg, func() error {
		attempts++
		return errors.New("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial + 2 retries
}

func TestRetry_HonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultRetryConfig()
	err := Retry(ctx, cfg, func() error {
		t.Fatal("fn should not run after cancellation")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryWithResult_ReturnsValueOnSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
	result, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}
