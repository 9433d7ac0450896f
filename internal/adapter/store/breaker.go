package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

type BreakerSettings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests and FailureRatio decide when the circuit opens.
	MinRequests  uint32
	FailureRatio float64
}

func DefaultBreakerSettings(name string) BreakerSettings {
	return BreakerSettings{
		Name:         name,
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// BreakerStore fails fast with ports.ErrUnavailable while the backing store
// keeps erroring. Missing keys, conflicts and errors from UpdateFunc are not
// counted as failures.
type BreakerStore struct {
	next ports.Store
	cb   *gobreaker.CircuitBreaker
	log  *zap.Logger
}

func WithBreaker(next ports.Store, settings BreakerSettings, log *zap.Logger) *BreakerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < settings.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("Store circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &BreakerStore{next: next, cb: cb, log: log}
}

func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func (s *BreakerStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.do(func() (interface{}, error) { return s.next.Get(ctx, key) })
	return asString(v), err
}

func (s *BreakerStore) Set(ctx context.Context, key, value string) error {
	_, err := s.do(func() (interface{}, error) { return nil, s.next.Set(ctx, key, value) })
	return err
}

func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := s.do(func() (interface{}, error) { return nil, s.next.Delete(ctx, key) })
	return err
}

func (s *BreakerStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := s.do(func() (interface{}, error) { return s.next.IncrBy(ctx, key, delta) })
	n, _ := v.(int64)
	return n, err
}

func (s *BreakerStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	var callerErr error
	wrapped := func(cur string, exists bool) (string, error) {
		next, err := fn(cur, exists)
		if err != nil {
			callerErr = err
		}
		return next, err
	}
	v, err := s.do(func() (interface{}, error) {
		next, err := s.next.Update(ctx, key, wrapped)
		if err != nil && callerErr != nil && errors.Is(err, callerErr) {
			return nil, expected{err}
		}
		return next, err
	})
	return asString(v), err
}

func (s *BreakerStore) Ping(ctx context.Context) error {
	_, err := s.do(func() (interface{}, error) { return nil, s.next.Ping(ctx) })
	return err
}

func (s *BreakerStore) Close() error {
	return s.next.Close()
}

// expected marks an error that should reach the caller without tripping the
// circuit.
type expected struct{ err error }

func (e expected) Error() string { return e.err.Error() }

func (s *BreakerStore) do(op func() (interface{}, error)) (interface{}, error) {
	var passthrough error
	v, err := s.cb.Execute(func() (interface{}, error) {
		v, err := op()
		var exp expected
		switch {
		case err == nil:
			return v, nil
		case errors.As(err, &exp):
			passthrough = exp.err
			return v, nil
		case errors.Is(err, ports.ErrNotFound), errors.Is(err, ports.ErrConflict),
			errors.Is(err, context.Canceled):
			passthrough = err
			return v, nil
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ports.ErrUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return v, passthrough
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
