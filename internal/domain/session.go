package domain

import "time"

type SessionMode string

const (
	ModeAll    SessionMode = "all10"
	ModeMissed SessionMode = "missed"
)

type SessionPhase string

const (
	PhaseActive   SessionPhase = "active"
	PhaseFinished SessionPhase = "finished"
)

// Question is the client view of a vocabulary item. The correct index is
// only revealed once the attempt is done.
type Question struct {
	Number  int       `json:"number"`
	Total   int       `json:"total"`
	Word    string    `json:"word"`
	Reading string    `json:"reading,omitempty"`
	Choices ChoiceSet `json:"choices"`
	Correct int       `json:"correct,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

type SessionView struct {
	ID           string          `json:"id"`
	LearnerID    string          `json:"learner_id"`
	Mode         SessionMode     `json:"mode"`
	Phase        SessionPhase    `json:"phase"`
	Question     *Question       `json:"question,omitempty"`
	Attempt      AttemptSnapshot `json:"attempt"`
	Score        int             `json:"score"`
	Streak       int             `json:"streak"`
	MaxStreak    int             `json:"max_streak"`
	CorrectCount int             `json:"correct_count"`
	AutoAdvance  bool            `json:"auto_advance"`
	AutoNextAt   *time.Time      `json:"auto_next_at,omitempty"`
}

type SessionResult struct {
	SessionID string      `json:"session_id"`
	Mode      SessionMode `json:"mode"`
	Total     int         `json:"total"`
	Correct   int         `json:"correct"`
	Score     int         `json:"score"`
	MaxStreak int         `json:"max_streak"`
}
