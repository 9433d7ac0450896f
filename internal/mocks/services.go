package mocks

import (
	"context"
	"sync"
)

// MockTranscriber is a mock implementation of ports.Transcriber
type MockTranscriber struct {
	mu             sync.Mutex
	Calls          int
	TranscribeFunc func(ctx context.Context, audio []byte, lang string) (string, error)
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio []byte, lang string) (string, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio, lang)
	}
	return "", nil
}

// MockReadingProvider returns readings from a fixed table.
type MockReadingProvider struct {
	Readings map[string]string
}

func (m *MockReadingProvider) Reading(text string) string {
	return m.Readings[text]
}

// MockSecretSource is a mock implementation of ports.SecretSource
type MockSecretSource struct {
	SecretFunc func(ctx context.Context, path, field string) (string, error)
}

func (m *MockSecretSource) Secret(ctx context.Context, path, field string) (string, error) {
	if m.SecretFunc != nil {
		return m.SecretFunc(ctx, path, field)
	}
	return "", nil
}
