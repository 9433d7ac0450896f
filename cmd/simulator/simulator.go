package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/auth"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
)

// SimulatorConfig holds the simulated learner's behaviour.
type SimulatorConfig struct {
	ServerURL     string
	Mode          string
	QuestionCount int
	Voice         bool
	Seed          int64
	Feed          bool
	Interactive   bool
}

// spoken answers per choice index, as a learner would say them
var numeralWords = map[int]string{1: "いちばん", 2: "にばん", 3: "さんばん", 4: "よんばん"}

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
	Code  int             `json:"code"`
}

// Simulator plays quiz sessions against a running server: it registers a
// guest learner over HTTP and answers every question over the session
// websocket.
type Simulator struct {
	config *SimulatorConfig
	log    *zap.Logger
	http   *http.Client
	rng    *rand.Rand
	input  *bufio.Reader

	token   string
	learner string

	updates *websocket.Conn
	mu      sync.Mutex
	wallet  int64
}

func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	return &Simulator{
		config: config,
		log:    log,
		http:   &http.Client{Timeout: 10 * time.Second},
		rng:    rand.New(rand.NewSource(config.Seed)),
		input:  bufio.NewReader(os.Stdin),
	}
}

// Login creates a guest learner, saves the question count and subscribes to
// wallet and friend updates.
func (s *Simulator) Login(ctx context.Context) error {
	var tok auth.Token
	if err := s.call(ctx, http.MethodPost, "/api/v1/auth/guest", nil, &tok); err != nil {
		return err
	}
	s.token = tok.Token
	s.learner = tok.Learner.ID
	s.log.Info("Guest learner created", zap.String("learner_id", s.learner))

	prefs := domain.VoiceSettings{QuestionCount: s.config.QuestionCount, AutoDelayMs: 3000}
	if err := s.call(ctx, http.MethodPut, "/api/v1/settings", prefs, nil); err != nil {
		return err
	}

	conn, err := s.dial(ctx, "/ws/updates")
	if err != nil {
		return err
	}
	s.updates = conn
	go s.readUpdates()
	return nil
}

func (s *Simulator) Stop() {
	if s.updates != nil {
		_ = s.updates.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.updates.Close()
	}
}

func (s *Simulator) readUpdates() {
	for {
		var env envelope
		if err := s.updates.ReadJSON(&env); err != nil {
			return
		}
		switch env.Type {
		case string(domain.EventWallet):
			var ev domain.WalletEvent
			if json.Unmarshal(env.Data, &ev) == nil {
				s.mu.Lock()
				s.wallet = ev.Balance
				s.mu.Unlock()
				s.log.Debug("Wallet updated", zap.Int64("balance", ev.Balance), zap.Int64("delta", ev.Delta))
			}
		case string(domain.EventFriend):
			var ev domain.FriendEvent
			if json.Unmarshal(env.Data, &ev) == nil && ev.LeveledUp {
				fmt.Printf("Friend reached level %d (combo tier %d)\n", ev.Friend.Level, reward.ComboTier(ev.Friend.Level))
			}
		}
	}
}

// PlayRound creates a session and answers every question.
func (s *Simulator) PlayRound(ctx context.Context) (domain.SessionResult, error) {
	var view domain.SessionView
	body := map[string]string{"mode": s.config.Mode}
	if err := s.call(ctx, http.MethodPost, "/api/v1/sessions", body, &view); err != nil {
		return domain.SessionResult{}, err
	}
	log := s.log.With(zap.String("session_id", view.ID))

	conn, err := s.dial(ctx, "/ws/sessions/"+view.ID)
	if err != nil {
		return domain.SessionResult{}, err
	}
	defer conn.Close()

	frames := make(chan envelope, 32)
	go func() {
		defer close(frames)
		for {
			var env envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- env
		}
	}()

	send := func(cmd map[string]interface{}) error {
		return conn.WriteJSON(cmd)
	}

	for {
		env, err := next(ctx, frames)
		if err != nil {
			return domain.SessionResult{}, err
		}

		switch env.Type {
		case "error":
			return domain.SessionResult{}, fmt.Errorf("server error %d: %s", env.Code, env.Error)

		case "result":
			var res domain.SessionResult
			if err := json.Unmarshal(env.Data, &res); err != nil {
				return res, err
			}
			return res, nil

		case "session", "match":
			if env.Type == "match" {
				var m struct {
					Match   domain.MatchResult `json:"match"`
					Session domain.SessionView `json:"session"`
				}
				if err := json.Unmarshal(env.Data, &m); err != nil {
					return domain.SessionResult{}, err
				}
				log.Debug("Utterance matched", zap.String("status", string(m.Match.Status)), zap.Int("index", m.Match.Index))
				view = m.Session
			} else if err := json.Unmarshal(env.Data, &view); err != nil {
				return domain.SessionResult{}, err
			}

			if view.Phase == domain.PhaseFinished || view.Question == nil {
				if err := send(map[string]interface{}{"action": "quit"}); err != nil {
					return domain.SessionResult{}, err
				}
				continue
			}

			switch view.Attempt.State {
			case domain.AttemptIdle:
				fmt.Printf("\nQ%d/%d %s\n", view.Question.Number, view.Question.Total, view.Question.Word)
				for i, c := range view.Question.Choices {
					fmt.Printf("  %d. %s\n", i+1, c)
				}
				if s.config.Voice {
					err = send(map[string]interface{}{"action": "start"})
				} else {
					err = send(map[string]interface{}{"action": "select", "choice": s.pick()})
				}
			case domain.AttemptDone:
				verdict := "wrong"
				if view.Attempt.Selected == view.Question.Correct {
					verdict = "correct"
				}
				fmt.Printf("  -> %s (answer %d, score %d, streak %d)\n", verdict, view.Question.Correct, view.Score, view.Streak)
				if view.Question.Number >= view.Question.Total {
					err = send(map[string]interface{}{"action": "quit"})
				} else if !view.AutoAdvance {
					err = send(map[string]interface{}{"action": "next"})
				}
			case domain.AttemptAnswer:
				if view.Attempt.CanRetry() {
					err = send(map[string]interface{}{"action": "retry"})
				} else if view.Attempt.NoResult {
					err = send(map[string]interface{}{"action": "select", "choice": s.pick()})
				}
			}
			if err != nil {
				return domain.SessionResult{}, err
			}

		case "attempt":
			var ev domain.AttemptEvent
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				return domain.SessionResult{}, err
			}
			if ev.Type == "window_opened" {
				choice := s.pick()
				log.Debug("Speaking answer", zap.Int("choice", choice))
				if err := send(map[string]interface{}{"action": "utterance", "text": numeralWords[choice]}); err != nil {
					return domain.SessionResult{}, err
				}
			}
		}
	}
}

// FeedFriend spends the whole wallet on the friend.
func (s *Simulator) FeedFriend(ctx context.Context) error {
	var wallet struct {
		Balance int64 `json:"balance"`
	}
	if err := s.call(ctx, http.MethodGet, "/api/v1/wallet", nil, &wallet); err != nil {
		return err
	}
	if wallet.Balance <= 0 {
		return nil
	}
	var out map[string]interface{}
	return s.call(ctx, http.MethodPost, "/api/v1/friend/feed", map[string]int64{"amount": wallet.Balance}, &out)
}

func (s *Simulator) pick() int {
	if !s.config.Interactive {
		return s.rng.Intn(domain.ChoiceCount) + 1
	}
	for {
		fmt.Print("answer (1-4): ")
		line, err := s.input.ReadString('\n')
		if err != nil {
			return 1
		}
		if n, err := strconv.Atoi(strings.TrimSpace(line)); err == nil && n >= 1 && n <= domain.ChoiceCount {
			return n
		}
	}
}

func next(ctx context.Context, frames <-chan envelope) (envelope, error) {
	select {
	case <-ctx.Done():
		return envelope{}, ctx.Err()
	case env, ok := <-frames:
		if !ok {
			return envelope{}, errors.New("session stream closed")
		}
		return env, nil
	case <-time.After(30 * time.Second):
		return envelope{}, errors.New("timed out waiting for the server")
	}
}

func (s *Simulator) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	u, err := url.Parse(s.config.ServerURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	u.RawQuery = url.Values{"token": {s.token}}.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", path, err)
	}
	return conn, nil
}

func (s *Simulator) call(ctx context.Context, method, path string, body, out interface{}) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(s.config.ServerURL, "/")+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
