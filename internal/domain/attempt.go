package domain

import (
	"encoding/json"
	"time"
)

type AttemptState string

const (
	AttemptIdle      AttemptState = "idle"
	AttemptCountdown AttemptState = "countdown"
	AttemptAnswer    AttemptState = "answer"
	AttemptDone      AttemptState = "done"
)

type AnswerSource string

const (
	SourceVoice  AnswerSource = "voice"
	SourceManual AnswerSource = "manual"
)

// Cue is one rhythmic beep of the countdown, offset from the countdown start.
type Cue struct {
	At       time.Duration `json:"at_ms"`
	Duration time.Duration `json:"duration_ms"`
	Go       bool          `json:"go"`
}

// MarshalJSON writes the offsets as whole milliseconds.
func (c Cue) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		At       int64 `json:"at_ms"`
		Duration int64 `json:"duration_ms"`
		Go       bool  `json:"go"`
	}{c.At.Milliseconds(), c.Duration.Milliseconds(), c.Go})
}

// AttemptSnapshot is the externally visible state of one attempt.
type AttemptSnapshot struct {
	State      AttemptState `json:"state"`
	Try        int          `json:"try"`
	MaxTries   int          `json:"max_tries"`
	WindowOpen bool         `json:"window_open"`
	NoResult   bool         `json:"no_result"`
	Heard      string       `json:"heard,omitempty"`
	Selected   int          `json:"selected,omitempty"`
	Source     AnswerSource `json:"source,omitempty"`
	Match      *MatchResult `json:"match,omitempty"`
}

// CanRetry reports whether another voice try may be offered.
func (s AttemptSnapshot) CanRetry() bool {
	return s.State == AttemptAnswer && s.NoResult && s.Try < s.MaxTries
}
