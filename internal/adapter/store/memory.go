// Package store implements ports.Store over process memory, Redis and
// PostgreSQL.
package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// MemoryStore keeps learner data in a map. Used for development and as the
// default when no external store is configured.
type MemoryStore struct {
	data map[string]string
	mu   sync.RWMutex
	log  *zap.Logger
}

func NewMemoryStore(log *zap.Logger) ports.Store {
	log.Info("In-memory learner store initialized")
	return &MemoryStore{
		data: make(map[string]string),
		log:  log,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if cur, ok := s.data[key]; ok {
		v, err := strconv.ParseInt(cur, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer: %w", key, err)
		}
		n = v
	}
	n += delta
	s.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (s *MemoryStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[key]
	next, err := fn(cur, ok)
	if err != nil {
		return "", err
	}
	s.data[key] = next
	return next, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
