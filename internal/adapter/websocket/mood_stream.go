package websocket

import (
	"encoding/json"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
	"github.com/kogoto-lab/kogoto/internal/service/mood"
)

// MoodFrame is one client message on /ws/mood. Type is "frame", "calibrate"
// or "reset". AtMs is the capture time in unix milliseconds; zero means now.
type MoodFrame struct {
	Type  string              `json:"type"`
	Frame []domain.Blendshape `json:"frame,omitempty"`
	AtMs  int64               `json:"at_ms,omitempty"`
}

// MoodStream scores blendshape frames with a per-connection estimator.
type MoodStream struct {
	cfg mood.Config
	log *zap.Logger
}

func NewMoodStream(cfg mood.Config, log *zap.Logger) *MoodStream {
	return &MoodStream{cfg: cfg, log: log}
}

func (m *MoodStream) Handle(conn *websocket.Conn) {
	client := newClient(conn, "", m.log)
	go client.writePump()
	defer client.shutdown()

	telemetry.WebsocketClients.WithLabelValues("mood").Inc()
	defer telemetry.WebsocketClients.WithLabelValues("mood").Dec()

	est := mood.NewEstimator(m.cfg)

	client.prepareRead()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg MoodFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			client.SendJSON(Envelope{Type: "error", Error: "malformed frame", Code: 400})
			continue
		}

		switch msg.Type {
		case "calibrate":
			est.Calibrate(msg.Frame)
			client.SendJSON(Envelope{Type: "calibrated"})
		case "reset":
			est.Reset()
			client.SendJSON(Envelope{Type: "reset"})
		case "frame", "":
			at := time.Now()
			if msg.AtMs > 0 {
				at = time.UnixMilli(msg.AtMs)
			}
			client.SendJSON(Envelope{Type: "mood", Data: est.Observe(msg.Frame, at)})
		default:
			client.SendJSON(Envelope{Type: "error", Error: "unknown frame type", Code: 400})
		}
	}
}
