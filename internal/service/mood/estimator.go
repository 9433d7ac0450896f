// Package mood turns facial blendshape scores into a positive/negative
// answer for the polarity quiz.
package mood

import (
	"math"
	"sync"
	"time"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

type Config struct {
	Alpha     float64
	Threshold float64
	Dwell     time.Duration
	// SmileGate is the smile level at which an open mouth stops counting as
	// negative.
	SmileGate float64
}

func DefaultConfig() Config {
	return Config{
		Alpha:     0.8,
		Threshold: 0.18,
		Dwell:     time.Second,
		SmileGate: 0.15,
	}
}

// Blendshape names read from the face landmarker.
var calibrated = []string{
	"mouthSmileLeft", "mouthSmileRight",
	"mouthFrownLeft", "mouthFrownRight",
	"browDownLeft", "browDownRight",
	"eyeSquintLeft", "eyeSquintRight",
	"mouthPressLeft", "mouthPressRight",
	"noseSneerLeft", "noseSneerRight",
	"jawOpen",
	"mouthLowerDownLeft", "mouthLowerDownRight",
	"mouthUpperUpLeft", "mouthUpperUpRight",
}

// Estimator smooths frames from one camera stream. Safe for concurrent use.
type Estimator struct {
	cfg Config

	mu        sync.Mutex
	base      map[string]float64
	last      []domain.Blendshape
	scores    domain.MoodScores
	candidate domain.MoodGuess
	since     time.Time
	confirmed domain.MoodGuess
}

func NewEstimator(cfg Config) *Estimator {
	return &Estimator{cfg: cfg, base: map[string]float64{}}
}

// Calibrate stores frame as the neutral face. A nil frame uses the most
// recent observed frame.
func (e *Estimator) Calibrate(frame []domain.Blendshape) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if frame == nil {
		frame = e.last
	}
	if frame == nil {
		return
	}
	idx := index(frame)
	for _, name := range calibrated {
		e.base[name] = idx[name]
	}
}

// Observe folds one frame into the smoothed scores and updates the dwell
// confirmation.
func (e *Estimator) Observe(frame []domain.Blendshape, at time.Time) domain.MoodReading {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.last = append(e.last[:0:0], frame...)
	cur := e.adjusted(index(frame))
	e.scores = smooth(e.scores, cur, e.cfg.Alpha)

	r := Evaluate(e.scores, e.cfg)
	if e.confirmed != "" {
		r.Guess = e.confirmed
		r.Confirmed = true
		return r
	}

	switch {
	case r.Guess == domain.MoodWait:
		e.candidate = ""
	case r.Guess != e.candidate:
		e.candidate = r.Guess
		e.since = at
	case at.Sub(e.since) >= e.cfg.Dwell:
		e.confirmed = r.Guess
		r.Confirmed = true
	}
	return r
}

// Reset clears the confirmation for the next question. Calibration and
// smoothing are kept.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.candidate = ""
	e.confirmed = ""
	e.since = time.Time{}
}

// Evaluate scores smoothed blendshapes: negative is the strongest of frown,
// weighted scowl and smile-gated open mouth.
func Evaluate(s domain.MoodScores, cfg Config) domain.MoodReading {
	scowl := 0.35*s.BrowDown + 0.25*s.EyeSquint + 0.2*s.MouthPress + 0.2*s.NoseSneer
	openRaw := 0.6*s.JawOpen + 0.2*s.MouthLowerDown + 0.2*s.MouthUpperUp
	gate := 1.0
	if cfg.SmileGate > 0 {
		gate = math.Max(0, 1-s.Smile/cfg.SmileGate)
	}
	open := openRaw * gate

	neg := math.Max(s.Frown, math.Max(scowl, open))
	pos := s.Smile
	m := pos - neg

	guess := domain.MoodWait
	switch {
	case m >= cfg.Threshold:
		guess = domain.MoodPositive
	case m <= -cfg.Threshold:
		guess = domain.MoodNegative
	}
	return domain.MoodReading{Scores: s, Positive: pos, Negative: neg, Mood: m, Guess: guess}
}

func (e *Estimator) adjusted(idx map[string]float64) domain.MoodScores {
	adj := func(name string) float64 {
		return math.Max(0, idx[name]-e.base[name])
	}
	pair := func(prefix string) float64 {
		return (adj(prefix+"Left") + adj(prefix+"Right")) / 2
	}
	return domain.MoodScores{
		Smile:          pair("mouthSmile"),
		Frown:          pair("mouthFrown"),
		BrowDown:       pair("browDown"),
		EyeSquint:      pair("eyeSquint"),
		MouthPress:     pair("mouthPress"),
		NoseSneer:      pair("noseSneer"),
		JawOpen:        adj("jawOpen"),
		MouthLowerDown: pair("mouthLowerDown"),
		MouthUpperUp:   pair("mouthUpperUp"),
	}
}

func smooth(prev, cur domain.MoodScores, alpha float64) domain.MoodScores {
	f := func(p, c float64) float64 { return p*alpha + c*(1-alpha) }
	return domain.MoodScores{
		Smile:          f(prev.Smile, cur.Smile),
		Frown:          f(prev.Frown, cur.Frown),
		BrowDown:       f(prev.BrowDown, cur.BrowDown),
		EyeSquint:      f(prev.EyeSquint, cur.EyeSquint),
		MouthPress:     f(prev.MouthPress, cur.MouthPress),
		NoseSneer:      f(prev.NoseSneer, cur.NoseSneer),
		JawOpen:        f(prev.JawOpen, cur.JawOpen),
		MouthLowerDown: f(prev.MouthLowerDown, cur.MouthLowerDown),
		MouthUpperUp:   f(prev.MouthUpperUp, cur.MouthUpperUp),
	}
}

func index(frame []domain.Blendshape) map[string]float64 {
	m := make(map[string]float64, len(frame))
	for _, b := range frame {
		if _, ok := m[b.Name]; !ok {
			m[b.Name] = b.Score
		}
	}
	return m
}
