package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/mocks"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

func testSettings() BreakerSettings {
	s := DefaultBreakerSettings("test")
	s.MinRequests = 3
	s.Timeout = time.Hour
	return s
}

func TestBreakerStore_OpensOnBackendFailures(t *testing.T) {
	// Arrange
	backend := mocks.NewMockStore()
	backend.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("connection refused")
	}
	s := WithBreaker(backend, testSettings(), zap.NewNop())
	ctx := context.Background()

	// Act
	for i := 0; i < 3; i++ {
		_, err := s.Get(ctx, "k")
		require.Error(t, err)
		require.NotErrorIs(t, err, ports.ErrUnavailable)
	}
	_, err := s.Get(ctx, "k")

	// Assert
	assert.ErrorIs(t, err, ports.ErrUnavailable)
	assert.Equal(t, gobreaker.StateOpen, s.State())
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	backend := mocks.NewMockStore()
	s := WithBreaker(backend, testSettings(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerStore_UpdateFuncErrorsDoNotTrip(t *testing.T) {
	backend := mocks.NewMockStore()
	s := WithBreaker(backend, testSettings(), zap.NewNop())
	ctx := context.Background()
	invalid := errors.New("invalid amount")

	for i := 0; i < 10; i++ {
		_, err := s.Update(ctx, "k", func(string, bool) (string, error) { return "", invalid })
		assert.ErrorIs(t, err, invalid)
	}
	assert.Equal(t, gobreaker.StateClosed, s.State())
}

func TestBreakerStore_PassesValuesThrough(t *testing.T) {
	backend := mocks.NewMockStore()
	s := WithBreaker(backend, testSettings(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v"))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	n, err := s.IncrBy(ctx, "n", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	got, err := s.Update(ctx, "k", func(cur string, exists bool) (string, error) { return cur + "!", nil })
	require.NoError(t, err)
	assert.Equal(t, "v!", got)
}
