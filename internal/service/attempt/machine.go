// Package attempt runs one timed voice attempt at a question: a rhythmic
// countdown, a short answer window and resolution by voice or by hand.
package attempt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

var (
	ErrClosed            = errors.New("attempt: closed")
	ErrInvalidTransition = errors.New("attempt: invalid transition")
	ErrNotListening      = errors.New("attempt: answer window is not open")
	ErrAlreadyDone       = errors.New("attempt: already answered")
	ErrInvalidChoice     = errors.New("attempt: choice out of range")
	ErrRetriesExhausted  = errors.New("attempt: no retries left")
)

// Event types carried by Event.Type.
const (
	EventCountdown    = "countdown"
	EventWindowOpened = "window_opened"
	EventWindowClosed = "window_closed"
	EventNoResult     = "no_result"
	EventResolved     = "resolved"
)

type Config struct {
	Lead         time.Duration
	Beat         time.Duration
	Beats        int
	CueDuration  time.Duration
	AnswerWindow time.Duration
	MaxTries     int
}

func DefaultConfig() Config {
	return Config{
		Lead:         250 * time.Millisecond,
		Beat:         600 * time.Millisecond,
		Beats:        3,
		CueDuration:  90 * time.Millisecond,
		AnswerWindow: 3 * time.Second,
		MaxTries:     3,
	}
}

// GoOffset is the delay from countdown start to the answer window.
func (c Config) GoOffset() time.Duration {
	return c.Lead + time.Duration(c.Beats)*c.Beat
}

// Cues lists the countdown beeps; the last one is the GO beat.
func (c Config) Cues() []domain.Cue {
	cues := make([]domain.Cue, 0, c.Beats+1)
	for i := 0; i <= c.Beats; i++ {
		cues = append(cues, domain.Cue{
			At:       c.Lead + time.Duration(i)*c.Beat,
			Duration: c.CueDuration,
			Go:       i == c.Beats,
		})
	}
	return cues
}

type Matcher interface {
	Match(utterance string, choices domain.ChoiceSet) domain.MatchResult
}

type Event struct {
	Seq      uint64
	Type     string
	Snapshot domain.AttemptSnapshot
	Cues     []domain.Cue
	Prompt   string
}

// Machine is safe for concurrent use. At most one timer is pending at any
// time and it belongs to the current state; a timer that fires after the
// state moved on is ignored.
type Machine struct {
	cfg     Config
	clock   Clock
	matcher Matcher
	choices domain.ChoiceSet
	prompt  string
	notify  func(Event)
	log     *zap.Logger

	mu         sync.Mutex
	state      domain.AttemptState
	try        int
	windowOpen bool
	noResult   bool
	heard      string
	selected   int
	source     domain.AnswerSource
	match      *domain.MatchResult
	timer      Timer
	gen        uint64
	seq        uint64
	closed     bool
	pending    []Event
}

type Option func(*Machine)

func WithClock(c Clock) Option { return func(m *Machine) { m.clock = c } }

func WithConfig(c Config) Option { return func(m *Machine) { m.cfg = c } }

// WithNotify registers the event sink. It is called without the machine's
// lock held, so it may call back into the machine.
func WithNotify(f func(Event)) Option { return func(m *Machine) { m.notify = f } }

func New(choices domain.ChoiceSet, prompt string, matcher Matcher, log *zap.Logger, opts ...Option) *Machine {
	m := &Machine{
		cfg:     DefaultConfig(),
		clock:   RealClock(),
		matcher: matcher,
		choices: choices,
		prompt:  prompt,
		log:     log,
		state:   domain.AttemptIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the first try: countdown cues plus the spoken prompt.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state != domain.AttemptIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.state)
	}
	m.try = 1
	m.resetAnswer()
	m.enterCountdown(true)
	return nil
}

// Retry starts another countdown after a try produced no usable answer.
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state != domain.AttemptAnswer || !m.noResult {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, m.state)
	}
	if m.try >= m.cfg.MaxTries {
		return ErrRetriesExhausted
	}
	m.try++
	m.resetAnswer()
	m.enterCountdown(false)
	return nil
}

// SubmitUtterance feeds a recognized utterance. Only accepted while the
// answer window is open.
func (m *Machine) SubmitUtterance(text string) (domain.MatchResult, error) {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return domain.MatchResult{}, ErrClosed
	}
	if m.state != domain.AttemptAnswer || !m.windowOpen {
		return domain.MatchResult{}, ErrNotListening
	}
	m.heard = text
	return m.decide(text), nil
}

// Select records a manual choice. Allowed at any point before the attempt is
// done, including during the countdown.
func (m *Machine) Select(choice int) error {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return ErrClosed
	}
	if m.state == domain.AttemptDone {
		return ErrAlreadyDone
	}
	if choice < 1 || choice > domain.ChoiceCount {
		return ErrInvalidChoice
	}
	m.finish(choice, domain.SourceManual)
	return nil
}

// Close cancels the pending timer. Every later call returns ErrClosed.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.stopTimer()
}

func (m *Machine) Snapshot() domain.AttemptSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *Machine) enterCountdown(speak bool) {
	m.stopTimer()
	m.state = domain.AttemptCountdown
	m.windowOpen = false

	ev := Event{Type: EventCountdown, Cues: m.cfg.Cues()}
	if speak {
		ev.Prompt = m.prompt
	}
	m.emit(ev)

	m.schedule(m.cfg.GoOffset(), m.openWindow)
}

func (m *Machine) openWindow() {
	m.state = domain.AttemptAnswer
	m.windowOpen = true
	m.emit(Event{Type: EventWindowOpened})
	m.schedule(m.cfg.AnswerWindow, m.closeWindow)
}

func (m *Machine) closeWindow() {
	m.windowOpen = false
	if m.heard == "" {
		m.noResult = true
		m.emit(Event{Type: EventWindowClosed})
		return
	}
	if res := m.decide(m.heard); !res.Resolved() {
		m.emit(Event{Type: EventWindowClosed})
	}
}

// decide runs the matcher and either finishes the attempt or flags it as
// waiting for a retry or a manual choice.
func (m *Machine) decide(text string) domain.MatchResult {
	res := m.matcher.Match(text, m.choices)
	m.match = &res
	if res.Resolved() {
		m.finish(res.Index, domain.SourceVoice)
		return res
	}
	m.noResult = true
	m.emit(Event{Type: EventNoResult})
	return res
}

func (m *Machine) finish(choice int, src domain.AnswerSource) {
	m.stopTimer()
	m.state = domain.AttemptDone
	m.windowOpen = false
	m.noResult = false
	m.selected = choice
	m.source = src
	m.emit(Event{Type: EventResolved})
}

func (m *Machine) resetAnswer() {
	m.noResult = false
	m.heard = ""
	m.match = nil
	m.selected = 0
	m.source = ""
}

// schedule replaces the current timer. The callback runs under the lock and
// only if no transition happened since it was scheduled.
func (m *Machine) schedule(d time.Duration, f func()) {
	m.stopTimer()
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.unlock()
		if m.closed || gen != m.gen {
			return
		}
		m.timer = nil
		f()
	})
}

func (m *Machine) stopTimer() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) emit(ev Event) {
	m.seq++
	ev.Seq = m.seq
	ev.Snapshot = m.snapshot()
	m.pending = append(m.pending, ev)
}

func (m *Machine) unlock() {
	evs := m.pending
	m.pending = nil
	m.mu.Unlock()
	if m.notify == nil {
		return
	}
	for _, ev := range evs {
		m.notify(ev)
	}
}

func (m *Machine) snapshot() domain.AttemptSnapshot {
	s := domain.AttemptSnapshot{
		State:      m.state,
		Try:        m.try,
		MaxTries:   m.cfg.MaxTries,
		WindowOpen: m.windowOpen,
		NoResult:   m.noResult,
		Heard:      m.heard,
		Selected:   m.selected,
		Source:     m.source,
	}
	if m.match != nil {
		res := *m.match
		s.Match = &res
	}
	return s
}
