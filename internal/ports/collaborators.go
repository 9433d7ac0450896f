package ports

import "context"

// Transcriber turns recorded audio into a recognized utterance.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, lang string) (string, error)
}

// ReadingProvider returns the kana reading of Japanese text, or "" when it
// cannot produce one.
type ReadingProvider interface {
	Reading(text string) string
}

// SecretSource resolves named secrets, e.g. the token signing key.
type SecretSource interface {
	Secret(ctx context.Context, path, field string) (string, error)
}
