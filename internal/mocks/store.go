package mocks

import (
	"context"
	"strconv"
	"sync"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// MockStore is a mock implementation of ports.Store backed by a map. Any
// Func field that is set overrides the map behaviour for that method.
type MockStore struct {
	mu         sync.Mutex
	data       map[string]string
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key, value string) error
	DeleteFunc func(ctx context.Context, key string) error
	IncrByFunc func(ctx context.Context, key string, delta int64) (int64, error)
	UpdateFunc func(ctx context.Context, key string, fn ports.UpdateFunc) (string, error)
	PingFunc   func(ctx context.Context) error
	CloseFunc  func() error
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]string),
	}
}

func (m *MockStore) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return "", ports.ErrNotFound
}

func (m *MockStore) Set(ctx context.Context, key, value string) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	if m.IncrByFunc != nil {
		return m.IncrByFunc(ctx, key, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.data[key], 10, 64)
	n += delta
	m.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *MockStore) Update(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.data[key]
	next, err := fn(cur, ok)
	if err != nil {
		return "", err
	}
	m.data[key] = next
	return next, nil
}

func (m *MockStore) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Keys returns a copy of the stored data.
func (m *MockStore) Keys() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}
