package domain

import "time"

type EventKind string

const (
	EventAttempt EventKind = "attempt"
	EventAnswer  EventKind = "answer"
	EventWallet  EventKind = "wallet:update"
	EventFriend  EventKind = "friend:update"
)

// Event is implemented by every payload published on the event bus.
type Event interface {
	Kind() EventKind
}

type AttemptEvent struct {
	SessionID string          `json:"session_id"`
	Question  int             `json:"question"`
	Type      string          `json:"type"`
	Attempt   AttemptSnapshot `json:"attempt"`
	Cues      []Cue           `json:"cues,omitempty"`
	Prompt    string          `json:"prompt,omitempty"`
	At        time.Time       `json:"at"`
}

func (AttemptEvent) Kind() EventKind { return EventAttempt }

type AnswerEvent struct {
	SessionID string       `json:"session_id"`
	LearnerID string       `json:"learner_id"`
	ItemID    string       `json:"item_id"`
	Selected  int          `json:"selected"`
	Correct   bool         `json:"correct"`
	Source    AnswerSource `json:"source"`
	Streak    int          `json:"streak"`
	Awarded   int          `json:"awarded"`
	At        time.Time    `json:"at"`
}

func (AnswerEvent) Kind() EventKind { return EventAnswer }

type WalletEvent struct {
	LearnerID string `json:"learner_id"`
	Balance   int64  `json:"balance"`
	Delta     int64  `json:"delta"`
}

func (WalletEvent) Kind() EventKind { return EventWallet }

type FriendEvent struct {
	LearnerID string     `json:"learner_id"`
	Friend    FriendView `json:"friend"`
	LeveledUp bool       `json:"leveled_up"`
}

func (FriendEvent) Kind() EventKind { return EventFriend }
