package asr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// fakeRecognizer echoes the byte count it received as the transcript.
func fakeRecognizer(t *testing.T, reply func(lang string, n int) []recognizerMessage) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()

		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var setup setupMessage
		_ = json.Unmarshal(data, &setup)

		total := 0
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				total += len(data)
				continue
			}
			break
		}
		for _, m := range reply(setup.Setup.Language, total) {
			b, _ := json.Marshal(m)
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestTranscribe_Final(t *testing.T) {
	srv := fakeRecognizer(t, func(lang string, n int) []recognizerMessage {
		assert.Equal(t, "ja-JP", lang)
		assert.Equal(t, 100, n)
		return []recognizerMessage{{Text: "に"}, {Text: "にばん", Final: true}}
	})
	defer srv.Close()

	tr := NewTranscriber(Config{URL: wsURL(srv), ChunkSize: 30, Timeout: 5 * time.Second}, zap.NewNop())

	text, err := tr.Transcribe(context.Background(), make([]byte, 100), "ja-JP")

	require.NoError(t, err)
	assert.Equal(t, "にばん", text)
}

func TestTranscribe_RecognizerError(t *testing.T) {
	srv := fakeRecognizer(t, func(string, int) []recognizerMessage {
		return []recognizerMessage{{Error: "unsupported language"}}
	})
	defer srv.Close()

	tr := NewTranscriber(Config{URL: wsURL(srv), Timeout: 5 * time.Second}, zap.NewNop())

	_, err := tr.Transcribe(context.Background(), []byte{1, 2}, "xx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported language")
}

func TestTranscribe_ClosedWithoutFinal(t *testing.T) {
	srv := fakeRecognizer(t, func(string, int) []recognizerMessage { return nil })
	defer srv.Close()

	tr := NewTranscriber(Config{URL: wsURL(srv), Timeout: 5 * time.Second}, zap.NewNop())

	_, err := tr.Transcribe(context.Background(), []byte{1}, "ja-JP")
	assert.ErrorIs(t, err, ErrNoTranscript)
}
