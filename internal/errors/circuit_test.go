package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("embed", WithMaxFailures(2), WithResetTimeout(50*time.Millisecond))

	assert.True(t, cb.Allow())
	_ = cb.Execute(func() error { return errors.New("fail") })
	assert.True(t, cb.Allow())
	_ = cb.Execute(func() error { return errors.New("fail") })

	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("embed", WithMaxFailures(1), WithResetTimeout(10*time.Millisecond))
	_ = cb.Execute(func() error { return errors.New("fail") })
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.Allow())
}

func TestCircuitBreaker_RecordSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("embed", WithMaxFailures(3))
	_ = cb.Execute(func() error { return errors.New("fail") })
	assert.Equal(t, 1, cb.Failures())

	_ = cb.Execute(func() error { return nil })
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecuteWithResult_FallsBackWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("embed", WithMaxFailures(1), WithResetTimeout(time.Hour))
	_ = cb.Execute(func() error { return errors.New("fail") })

	got, err := ExecuteWithResult(cb, func() (string, error) {
		t.Fatal("fn should not run while circuit is open")
		return "", nil
	}, func() (string, error) {
		return "fallback", nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "fallback", got)
}
