// Package asr relays recorded answers to an external streaming speech
// recognizer over a websocket.
package asr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
)

const (
	defaultChunkSize = 32 * 1024
	defaultTimeout   = 10 * time.Second
)

var ErrNoTranscript = errors.New("asr: recognizer closed without a final transcript")

type Config struct {
	URL        string
	APIKey     string
	SampleRate int
	Encoding   string
	ChunkSize  int
	Timeout    time.Duration
}

// Transcriber implements ports.Transcriber. Each call opens its own
// connection, so it is safe for concurrent use.
type Transcriber struct {
	cfg    Config
	logger *zap.Logger
}

func NewTranscriber(cfg Config, logger *zap.Logger) *Transcriber {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "pcm_s16le"
	}
	return &Transcriber{cfg: cfg, logger: logger}
}

type setupMessage struct {
	Setup struct {
		Language   string `json:"language"`
		SampleRate int    `json:"sample_rate"`
		Encoding   string `json:"encoding"`
	} `json:"setup"`
}

type recognizerMessage struct {
	Text  string `json:"text"`
	Final bool   `json:"final"`
	Error string `json:"error,omitempty"`
}

// Transcribe streams audio to the recognizer and waits for its final result.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, lang string) (string, error) {
	start := time.Now()
	defer func() { telemetry.TranscribeLatency.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	headers := http.Header{}
	if t.cfg.APIKey != "" {
		headers.Set("Authorization", "Bearer "+t.cfg.APIKey)
	}
	conn, _, err := websocket.Dial(ctx, t.cfg.URL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return "", fmt.Errorf("asr: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var setup setupMessage
	setup.Setup.Language = lang
	setup.Setup.SampleRate = t.cfg.SampleRate
	setup.Setup.Encoding = t.cfg.Encoding
	if err := t.send(ctx, conn, setup); err != nil {
		return "", err
	}

	for off := 0; off < len(audio); off += t.cfg.ChunkSize {
		end := off + t.cfg.ChunkSize
		if end > len(audio) {
			end = len(audio)
		}
		if err := conn.Write(ctx, websocket.MessageBinary, audio[off:end]); err != nil {
			return "", fmt.Errorf("asr: send audio: %w", err)
		}
	}
	if err := t.send(ctx, conn, map[string]bool{"eof": true}); err != nil {
		return "", err
	}

	var partial string
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && partial != "" {
				return partial, nil
			}
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return "", ErrNoTranscript
			}
			return "", fmt.Errorf("asr: read: %w", err)
		}

		var msg recognizerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.logger.Debug("Ignoring malformed recognizer message", zap.Error(err))
			continue
		}
		if msg.Error != "" {
			return "", fmt.Errorf("asr: recognizer: %s", msg.Error)
		}
		if msg.Final {
			t.logger.Debug("Transcript received",
				zap.String("lang", lang),
				zap.Int("audio_bytes", len(audio)),
				zap.Duration("took", time.Since(start)),
			)
			return msg.Text, nil
		}
		partial = msg.Text
	}
}

func (t *Transcriber) send(ctx context.Context, conn *websocket.Conn, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("asr: send: %w", err)
	}
	return nil
}
