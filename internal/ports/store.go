package ports

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Store.Get for a missing key.
	ErrNotFound = errors.New("store: key not found")
	// ErrConflict is returned when a transactional update keeps losing races.
	ErrConflict = errors.New("store: concurrent update conflict")
	// ErrUnavailable is returned while the store circuit is open.
	ErrUnavailable = errors.New("store: unavailable")
)

// UpdateFunc receives the current value of a key (exists=false when absent)
// and returns the value to store.
type UpdateFunc func(current string, exists bool) (string, error)

// Store is the learner key-value store. Update and IncrBy are atomic with
// respect to other writers of the same key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Update(ctx context.Context, key string, fn UpdateFunc) (string, error)
	Ping(ctx context.Context) error
	Close() error
}
