package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/observability/telemetry"
	"github.com/kogoto-lab/kogoto/internal/ports"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
	"github.com/kogoto-lab/kogoto/internal/service/settings"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
)

var (
	ErrNotFound        = errors.New("session: not found")
	ErrInvalidMode     = errors.New("session: unknown mode")
	ErrNoQuestions     = errors.New("session: no questions available")
	ErrFinished        = errors.New("session: already finished")
	ErrNotFinished     = errors.New("session: still running")
	ErrNotAnswered     = errors.New("session: current question is not answered")
	ErrTooManySessions = errors.New("session: too many active sessions")
)

type Vocabulary interface {
	All() []domain.VocabItem
}

type Progress interface {
	AddCorrect(ctx context.Context, learnerID, id string) error
	AddWrong(ctx context.Context, learnerID, id string) error
	MoveWrongToCorrect(ctx context.Context, learnerID, id string) error
	WrongIDs(ctx context.Context, learnerID string) ([]string, error)
}

type Wallet interface {
	Earn(ctx context.Context, learnerID string, amount int64) (int64, error)
}

type Settings interface {
	Get(ctx context.Context, learnerID string) (domain.VoiceSettings, error)
}

type Config struct {
	IdleTimeout     time.Duration
	CleanupInterval time.Duration
	MaxSessions     int
	// SideEffectTimeout bounds progress and wallet writes after an answer.
	SideEffectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		IdleTimeout:       30 * time.Minute,
		CleanupInterval:   time.Minute,
		MaxSessions:       10000,
		SideEffectTimeout: 5 * time.Second,
	}
}

type Deps struct {
	Vocab    Vocabulary
	Progress Progress
	Wallet   Wallet
	Settings Settings
	Matcher  attempt.Matcher
	Bus      ports.EventBus
}

type Option func(*Service)

func WithClock(c attempt.Clock) Option { return func(s *Service) { s.clock = c } }

func WithAttemptConfig(c attempt.Config) Option { return func(s *Service) { s.attemptCfg = c } }

func WithRand(r *rand.Rand) Option { return func(s *Service) { s.rng = r } }

func WithTracer(t trace.Tracer) Option { return func(s *Service) { s.tracer = t } }

// Service owns every live session. Handlers subscribed to the event bus run
// while a session is locked and must not call back into the Service on the
// same goroutine.
type Service struct {
	deps       Deps
	cfg        Config
	attemptCfg attempt.Config
	clock      attempt.Clock
	tracer     trace.Tracer
	log        *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*Session

	stopCh    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewService(deps Deps, cfg Config, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		deps:       deps,
		cfg:        cfg,
		attemptCfg: attempt.DefaultConfig(),
		clock:      attempt.RealClock(),
		tracer:     otel.Tracer(telemetry.TracerName),
		log:        log,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sessions:   make(map[string]*Session),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go s.cleanupLoop(interval)

	log.Info("Session service initialized",
		zap.Duration("idle_timeout", cfg.IdleTimeout),
		zap.Int("max_sessions", cfg.MaxSessions),
	)
	return s
}

// Create builds the question queue and the first attempt. The attempt stays
// idle until Start.
func (s *Service) Create(ctx context.Context, learnerID string, mode domain.SessionMode) (domain.SessionView, error) {
	ctx, span := s.tracer.Start(ctx, "session.Create",
		trace.WithAttributes(attribute.String("learner.id", learnerID), attribute.String("session.mode", string(mode))))
	defer span.End()

	if mode == "" {
		mode = domain.ModeAll
	}
	if mode != domain.ModeAll && mode != domain.ModeMissed {
		return domain.SessionView{}, ErrInvalidMode
	}

	conf, err := s.deps.Settings.Get(ctx, learnerID)
	if err != nil {
		return domain.SessionView{}, fail(span, fmt.Errorf("load settings: %w", err))
	}
	conf = settings.Sanitize(conf)

	queue, err := s.buildQueue(ctx, learnerID, mode, conf.QuestionCount)
	if err != nil {
		return domain.SessionView{}, fail(span, err)
	}
	if len(queue) == 0 {
		return domain.SessionView{}, ErrNoQuestions
	}

	sess := &Session{
		id:        uuid.NewString(),
		learnerID: learnerID,
		mode:      mode,
		queue:     queue,
		settings:  conf,
		phase:     domain.PhaseActive,
		lastSeen:  s.clock.Now(),
	}
	sess.machine = s.newMachine(sess, 0)

	s.mu.Lock()
	if s.cfg.MaxSessions > 0 && len(s.sessions) >= s.cfg.MaxSessions {
		s.mu.Unlock()
		sess.machine.Close()
		return domain.SessionView{}, ErrTooManySessions
	}
	s.sessions[sess.id] = sess
	n := len(s.sessions)
	s.mu.Unlock()
	telemetry.ActiveSessions.Set(float64(n))

	span.SetAttributes(attribute.String("session.id", sess.id), attribute.Int("session.questions", len(queue)))
	s.log.Info("Session created",
		zap.String("session_id", sess.id),
		zap.String("learner_id", learnerID),
		zap.String("mode", string(mode)),
		zap.Int("questions", len(queue)),
	)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked(), nil
}

func (s *Service) Get(ctx context.Context, learnerID, id string) (domain.SessionView, error) {
	sess, err := s.lookup(learnerID, id)
	if err != nil {
		return domain.SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.viewLocked(), nil
}

// Start begins the countdown of the current question.
func (s *Service) Start(ctx context.Context, learnerID, id string) (domain.SessionView, error) {
	return s.withActive(ctx, "session.Start", learnerID, id, func(sess *Session) error {
		return sess.machine.Start()
	})
}

func (s *Service) Retry(ctx context.Context, learnerID, id string) (domain.SessionView, error) {
	return s.withActive(ctx, "session.Retry", learnerID, id, func(sess *Session) error {
		if err := sess.machine.Retry(); err != nil {
			return err
		}
		telemetry.AttemptRetriesTotal.Inc()
		return nil
	})
}

// SubmitUtterance feeds recognized speech to the current attempt.
func (s *Service) SubmitUtterance(ctx context.Context, learnerID, id, text string) (domain.MatchResult, domain.SessionView, error) {
	var res domain.MatchResult
	view, err := s.withActive(ctx, "session.SubmitUtterance", learnerID, id, func(sess *Session) error {
		var err error
		res, err = sess.machine.SubmitUtterance(text)
		if err != nil {
			return err
		}
		telemetry.MatchOutcomesTotal.WithLabelValues(string(res.Status), string(res.Rule)).Inc()
		return nil
	})
	return res, view, err
}

func (s *Service) Select(ctx context.Context, learnerID, id string, choice int) (domain.SessionView, error) {
	return s.withActive(ctx, "session.Select", learnerID, id, func(sess *Session) error {
		return sess.machine.Select(choice)
	})
}

// Next moves to the following question, or finishes the session after the
// last one. The current question must be answered.
func (s *Service) Next(ctx context.Context, learnerID, id string) (domain.SessionView, error) {
	return s.withActive(ctx, "session.Next", learnerID, id, func(sess *Session) error {
		return s.advanceLocked(sess)
	})
}

// Quit finishes early. The current question counts only if it was answered.
func (s *Service) Quit(ctx context.Context, learnerID, id string) (domain.SessionResult, error) {
	_, span := s.tracer.Start(ctx, "session.Quit", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := s.lookup(learnerID, id)
	if err != nil {
		return domain.SessionResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.phase == domain.PhaseFinished {
		return *sess.result, nil
	}
	answered := sess.index
	if sess.settled {
		answered++
	}
	res := sess.finishLocked(answered)
	telemetry.SessionsFinishedTotal.WithLabelValues(string(sess.mode), "quit").Inc()
	s.log.Info("Session quit",
		zap.String("session_id", id),
		zap.Int("answered", answered),
		zap.Int("score", res.Score),
	)
	return res, nil
}

func (s *Service) Result(ctx context.Context, learnerID, id string) (domain.SessionResult, error) {
	sess, err := s.lookup(learnerID, id)
	if err != nil {
		return domain.SessionResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.phase != domain.PhaseFinished {
		return domain.SessionResult{}, ErrNotFinished
	}
	return *sess.result, nil
}

// Remove drops a session and cancels its timers.
func (s *Service) Remove(learnerID, id string) error {
	sess, err := s.lookup(learnerID, id)
	if err != nil {
		return err
	}
	s.drop(sess)
	return nil
}

func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the configured timeout and
// reports how many were removed.
func (s *Service) Sweep() int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := s.clock.Now().Add(-s.cfg.IdleTimeout)

	s.mu.RLock()
	var stale []*Session
	for _, sess := range s.sessions {
		sess.mu.Lock()
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, sess)
		}
		sess.mu.Unlock()
	}
	s.mu.RUnlock()

	for _, sess := range stale {
		s.drop(sess)
	}
	if len(stale) > 0 {
		s.log.Debug("Session cleanup completed", zap.Int("expired_sessions", len(stale)))
	}
	return len(stale)
}

// Close stops the cleanup loop and cancels every session's timers.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.done

		s.mu.Lock()
		all := make([]*Session, 0, len(s.sessions))
		for _, sess := range s.sessions {
			all = append(all, sess)
		}
		s.mu.Unlock()
		for _, sess := range all {
			s.drop(sess)
		}
	})
}

func (s *Service) cleanupLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Service) drop(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	n := len(s.sessions)
	s.mu.Unlock()
	telemetry.ActiveSessions.Set(float64(n))

	sess.mu.Lock()
	sess.cancelAutoLocked()
	sess.machine.Close()
	sess.mu.Unlock()
}

func (s *Service) lookup(learnerID, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || sess.learnerID != learnerID {
		return nil, ErrNotFound
	}

	sess.mu.Lock()
	sess.lastSeen = s.clock.Now()
	sess.mu.Unlock()
	return sess, nil
}

// withActive runs op on an active session, settles the attempt if op
// finished it, and applies the answer's side effects after unlocking.
func (s *Service) withActive(ctx context.Context, name, learnerID, id string, op func(*Session) error) (domain.SessionView, error) {
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	sess, err := s.lookup(learnerID, id)
	if err != nil {
		return domain.SessionView{}, err
	}

	sess.mu.Lock()
	if sess.phase == domain.PhaseFinished {
		sess.mu.Unlock()
		return domain.SessionView{}, ErrFinished
	}
	if err := op(sess); err != nil {
		view := sess.viewLocked()
		sess.mu.Unlock()
		return view, fail(span, err)
	}
	out := s.settleLocked(sess)
	view := sess.viewLocked()
	sess.mu.Unlock()

	if out != nil {
		s.apply(ctx, out)
	}
	return view, nil
}

func (s *Service) newMachine(sess *Session, q int) *attempt.Machine {
	it := sess.queue[q]
	return attempt.New(it.Choices, it.Word, s.deps.Matcher, s.log.With(zap.String("session_id", sess.id)),
		attempt.WithClock(s.clock),
		attempt.WithConfig(s.attemptCfg),
		attempt.WithNotify(func(ev attempt.Event) { s.onAttemptEvent(sess, q, ev) }),
	)
}

func (s *Service) onAttemptEvent(sess *Session, q int, ev attempt.Event) {
	s.deps.Bus.Publish(domain.AttemptEvent{
		SessionID: sess.id,
		Question:  q + 1,
		Type:      ev.Type,
		Attempt:   ev.Snapshot,
		Cues:      ev.Cues,
		Prompt:    ev.Prompt,
		At:        s.clock.Now(),
	})
	telemetry.EventsPublishedTotal.WithLabelValues(string(domain.EventAttempt)).Inc()

	// A resolution driven by the window timer has no caller to settle it.
	if ev.Type == attempt.EventResolved {
		go s.settleFromTimer(sess, q)
	}
}

func (s *Service) settleFromTimer(sess *Session, q int) {
	sess.mu.Lock()
	if sess.phase == domain.PhaseFinished || sess.index != q {
		sess.mu.Unlock()
		return
	}
	out := s.settleLocked(sess)
	sess.mu.Unlock()
	if out != nil {
		s.apply(context.Background(), out)
	}
}

type settlement struct {
	learnerID string
	sessionID string
	mode      domain.SessionMode
	itemID    string
	selected  int
	source    domain.AnswerSource
	correct   bool
	streak    int
	awarded   int
}

// settleLocked scores a freshly finished attempt exactly once.
func (s *Service) settleLocked(sess *Session) *settlement {
	if sess.settled || sess.phase == domain.PhaseFinished {
		return nil
	}
	snap := sess.machine.Snapshot()
	if snap.State != domain.AttemptDone {
		return nil
	}
	sess.settled = true

	it := sess.item()
	out := &settlement{
		learnerID: sess.learnerID,
		sessionID: sess.id,
		mode:      sess.mode,
		itemID:    it.Key(),
		selected:  snap.Selected,
		source:    snap.Source,
		correct:   snap.Selected == it.Correct,
	}
	if out.correct {
		sess.streak++
		out.awarded = reward.ScoreFor(sess.streak)
		sess.score += out.awarded
		sess.correct++
		if sess.streak > sess.maxStreak {
			sess.maxStreak = sess.streak
		}
	} else {
		sess.streak = 0
	}
	out.streak = sess.streak

	if sess.settings.AutoAdvance {
		s.scheduleAutoLocked(sess)
	}
	return out
}

func (s *Service) apply(ctx context.Context, out *settlement) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sideEffectTimeout())
	defer cancel()

	log := s.log.With(zap.String("session_id", out.sessionID), zap.String("item_id", out.itemID))
	var err error
	switch {
	case out.correct && out.mode == domain.ModeMissed:
		err = s.deps.Progress.MoveWrongToCorrect(ctx, out.learnerID, out.itemID)
	case out.correct:
		err = s.deps.Progress.AddCorrect(ctx, out.learnerID, out.itemID)
	default:
		err = s.deps.Progress.AddWrong(ctx, out.learnerID, out.itemID)
	}
	if err != nil {
		log.Warn("Failed to record progress", zap.Error(err))
	}

	if credit := reward.WalletCredit(out.awarded); credit > 0 {
		if _, err := s.deps.Wallet.Earn(ctx, out.learnerID, credit); err != nil {
			log.Warn("Failed to credit wallet", zap.Error(err))
		}
	}

	s.deps.Bus.Publish(domain.AnswerEvent{
		SessionID: out.sessionID,
		LearnerID: out.learnerID,
		ItemID:    out.itemID,
		Selected:  out.selected,
		Correct:   out.correct,
		Source:    out.source,
		Streak:    out.streak,
		Awarded:   out.awarded,
		At:        s.clock.Now(),
	})
	telemetry.EventsPublishedTotal.WithLabelValues(string(domain.EventAnswer)).Inc()
	telemetry.AnswersTotal.WithLabelValues(string(out.source), fmt.Sprint(out.correct)).Inc()
}

func (s *Service) advanceLocked(sess *Session) error {
	if !sess.settled {
		return ErrNotAnswered
	}
	sess.cancelAutoLocked()
	sess.machine.Close()

	if sess.index+1 >= len(sess.queue) {
		res := sess.finishLocked(len(sess.queue))
		telemetry.SessionsFinishedTotal.WithLabelValues(string(sess.mode), "completed").Inc()
		s.log.Info("Session completed",
			zap.String("session_id", sess.id),
			zap.Int("correct", res.Correct),
			zap.Int("score", res.Score),
		)
		return nil
	}

	sess.index++
	sess.settled = false
	sess.machine = s.newMachine(sess, sess.index)
	return sess.machine.Start()
}

func (s *Service) scheduleAutoLocked(sess *Session) {
	sess.cancelAutoLocked()
	delay := settings.AutoDelay(sess.settings)
	gen := sess.autoGen
	sess.autoNextAt = s.clock.Now().Add(delay)
	sess.autoTimer = s.clock.AfterFunc(delay, func() { s.autoAdvance(sess, gen) })
}

func (s *Service) autoAdvance(sess *Session, gen uint64) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.autoGen || sess.phase == domain.PhaseFinished {
		return
	}
	sess.autoTimer = nil
	sess.autoNextAt = time.Time{}
	if err := s.advanceLocked(sess); err != nil {
		s.log.Warn("Auto-advance failed", zap.String("session_id", sess.id), zap.Error(err))
	}
}

func (s *Service) buildQueue(ctx context.Context, learnerID string, mode domain.SessionMode, n int) ([]domain.VocabItem, error) {
	all := s.deps.Vocab.All()
	if mode == domain.ModeAll {
		s.rngMu.Lock()
		defer s.rngMu.Unlock()
		return vocab.Sample(all, n, s.rng), nil
	}

	wrong, err := s.deps.Progress.WrongIDs(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("load wrong stock: %w", err)
	}
	missed := make(map[string]bool, len(wrong))
	for _, id := range wrong {
		missed[id] = true
	}
	var queue []domain.VocabItem
	for _, it := range all {
		if len(queue) == n {
			break
		}
		if missed[it.Key()] {
			queue = append(queue, it)
		}
	}
	return queue, nil
}

func (s *Service) sideEffectTimeout() time.Duration {
	if s.cfg.SideEffectTimeout > 0 {
		return s.cfg.SideEffectTimeout
	}
	return 5 * time.Second
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
