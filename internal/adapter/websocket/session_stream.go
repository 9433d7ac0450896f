package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/http/fiber/middleware"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

var ErrAudioDisabled = errors.New("voice audio is not enabled on this server")

// SessionCommands is the part of the session service the stream drives.
type SessionCommands interface {
	Get(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Start(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Retry(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	SubmitUtterance(ctx context.Context, learnerID, id, text string) (domain.MatchResult, domain.SessionView, error)
	Select(ctx context.Context, learnerID, id string, choice int) (domain.SessionView, error)
	Next(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Quit(ctx context.Context, learnerID, id string) (domain.SessionResult, error)
}

// Command is a text frame sent by the client on /ws/sessions/:id.
type Command struct {
	Action string `json:"action"`
	Choice int    `json:"choice,omitempty"`
	Text   string `json:"text,omitempty"`
}

type matchPayload struct {
	Match   domain.MatchResult `json:"match"`
	Session domain.SessionView `json:"session"`
}

// SessionStream drives one quiz session over a websocket: text frames carry
// commands, binary frames carry a recorded answer for the recognizer, and
// attempt events (countdown cues, window open/close) are pushed as they
// happen.
type SessionStream struct {
	sessions SessionCommands
	bus      ports.EventBus
	asr      ports.Transcriber
	lang     string
	log      *zap.Logger
}

// NewSessionStream creates the stream handler. asr may be nil, in which case
// binary frames are rejected.
func NewSessionStream(sessions SessionCommands, bus ports.EventBus, asr ports.Transcriber, lang string, log *zap.Logger) *SessionStream {
	return &SessionStream{
		sessions: sessions,
		bus:      bus,
		asr:      asr,
		lang:     lang,
		log:      log,
	}
}

func (s *SessionStream) Handle(conn *websocket.Conn) {
	learnerID, _ := conn.Locals(middleware.LearnerIDKey).(string)
	id := conn.Params("id")
	log := s.log.With(zap.String("session_id", id), zap.String("learner_id", learnerID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := newClient(conn, learnerID, log)
	go client.writePump()
	defer client.shutdown()

	view, err := s.sessions.Get(ctx, learnerID, id)
	if err != nil {
		client.SendJSON(errorEnvelope(err))
		return
	}

	telemetry.WebsocketClients.WithLabelValues("session").Inc()
	defer telemetry.WebsocketClients.WithLabelValues("session").Dec()

	attemptSub := s.bus.Subscribe(domain.EventAttempt, func(e domain.Event) {
		if ev, ok := e.(domain.AttemptEvent); ok && ev.SessionID == id {
			client.SendJSON(Envelope{Type: "attempt", Data: ev})
		}
	})
	defer attemptSub.Unsubscribe()
	answerSub := s.bus.Subscribe(domain.EventAnswer, func(e domain.Event) {
		if ev, ok := e.(domain.AnswerEvent); ok && ev.SessionID == id {
			client.SendJSON(Envelope{Type: "answer", Data: ev})
		}
	})
	defer answerSub.Unsubscribe()

	client.SendJSON(Envelope{Type: "session", Data: view})
	log.Debug("Session stream opened")

	client.prepareRead()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("Session stream closed unexpectedly", zap.Error(err))
			}
			return
		}

		var env Envelope
		switch mt {
		case websocket.BinaryMessage:
			env = s.handleAudio(ctx, learnerID, id, data)
		case websocket.TextMessage:
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				env = Envelope{Type: "error", Error: "malformed command", Code: 400}
				break
			}
			env = s.handleCommand(ctx, learnerID, id, cmd)
		default:
			continue
		}
		client.SendJSON(env)
	}
}

func (s *SessionStream) handleCommand(ctx context.Context, learnerID, id string, cmd Command) Envelope {
	var (
		view domain.SessionView
		err  error
	)
	switch cmd.Action {
	case "get":
		view, err = s.sessions.Get(ctx, learnerID, id)
	case "start":
		view, err = s.sessions.Start(ctx, learnerID, id)
	case "retry":
		view, err = s.sessions.Retry(ctx, learnerID, id)
	case "select":
		view, err = s.sessions.Select(ctx, learnerID, id, cmd.Choice)
	case "next":
		view, err = s.sessions.Next(ctx, learnerID, id)
	case "utterance":
		return s.submit(ctx, learnerID, id, cmd.Text)
	case "quit":
		res, err := s.sessions.Quit(ctx, learnerID, id)
		if err != nil {
			return errorEnvelope(err)
		}
		return Envelope{Type: "result", Data: res}
	default:
		return Envelope{Type: "error", Error: fmt.Sprintf("unknown action %q", cmd.Action), Code: 400}
	}
	if err != nil {
		return errorEnvelope(err)
	}
	return Envelope{Type: "session", Data: view}
}

func (s *SessionStream) handleAudio(ctx context.Context, learnerID, id string, audio []byte) Envelope {
	if s.asr == nil {
		return errorEnvelope(ErrAudioDisabled)
	}
	text, err := s.asr.Transcribe(ctx, audio, s.lang)
	if err != nil {
		s.log.Warn("Transcription failed", zap.String("session_id", id), zap.Error(err))
		return Envelope{Type: "error", Error: "speech recognition failed", Code: 502}
	}
	return s.submit(ctx, learnerID, id, text)
}

func (s *SessionStream) submit(ctx context.Context, learnerID, id, text string) Envelope {
	res, view, err := s.sessions.SubmitUtterance(ctx, learnerID, id, text)
	if err != nil {
		return errorEnvelope(err)
	}
	return Envelope{Type: "match", Data: matchPayload{Match: res, Session: view}}
}

func errorEnvelope(err error) Envelope {
	code := middleware.StatusFor(err)
	msg := err.Error()
	if errors.Is(err, ErrAudioDisabled) {
		code = 501
	} else if code >= 500 && code != 503 {
		msg = "internal server error"
	}
	return Envelope{Type: "error", Error: msg, Code: code}
}
