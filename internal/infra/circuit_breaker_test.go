package infra

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRed = errors.New("connection refused")

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, OpenTimeout: time.Minute})
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(func() error { return errRed }), errRed)
	}
	assert.Equal(t, CBOpen, cb.State())

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errRed })
	assert.Equal(t, CBOpen, cb.State())

	now = now.Add(61 * time.Second)
	assert.Equal(t, CBHalfOpen, cb.State())

	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBHalfOpen, cb.State())
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, CBClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Minute})
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return errRed })
	now = now.Add(2 * time.Minute)
	_ = cb.Execute(func() error { return errRed })
	assert.Equal(t, CBOpen, cb.State())
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	rechazo := errors.New("DEVUELTA")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		IsFailure:        func(err error) bool { return !errors.Is(err, rechazo) },
	})
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return rechazo }), rechazo)
	}
	assert.Equal(t, CBClosed, cb.State())
}
