// Package session runs quiz sessions: a queue of questions, one timed
// attempt per question, scoring and progress bookkeeping.
package session

import (
	"sync"
	"time"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
)

// Session is guarded by mu. The attempt machine has its own lock and may be
// called with mu held.
type Session struct {
	id        string
	learnerID string
	mode      domain.SessionMode
	queue     []domain.VocabItem
	settings  domain.VoiceSettings

	mu         sync.Mutex
	phase      domain.SessionPhase
	index      int
	machine    *attempt.Machine
	settled    bool
	score      int
	streak     int
	maxStreak  int
	correct    int
	autoTimer  attempt.Timer
	autoGen    uint64
	autoNextAt time.Time
	lastSeen   time.Time
	result     *domain.SessionResult
}

func (s *Session) ID() string { return s.id }

func (s *Session) LearnerID() string { return s.learnerID }

func (s *Session) item() domain.VocabItem {
	return s.queue[s.index]
}

func (s *Session) cancelAutoLocked() {
	s.autoGen++
	if s.autoTimer != nil {
		s.autoTimer.Stop()
		s.autoTimer = nil
	}
	s.autoNextAt = time.Time{}
}

func (s *Session) viewLocked() domain.SessionView {
	v := domain.SessionView{
		ID:           s.id,
		LearnerID:    s.learnerID,
		Mode:         s.mode,
		Phase:        s.phase,
		Score:        s.score,
		Streak:       s.streak,
		MaxStreak:    s.maxStreak,
		CorrectCount: s.correct,
		AutoAdvance:  s.settings.AutoAdvance,
	}
	if s.phase == domain.PhaseFinished {
		return v
	}

	snap := s.machine.Snapshot()
	it := s.item()
	q := domain.Question{
		Number:  s.index + 1,
		Total:   len(s.queue),
		Word:    it.Word,
		Reading: it.Reading,
		Choices: it.Choices,
		Hint:    it.Hint,
	}
	if snap.State == domain.AttemptDone {
		q.Correct = it.Correct
	}
	v.Question = &q
	v.Attempt = snap
	if !s.autoNextAt.IsZero() {
		at := s.autoNextAt
		v.AutoNextAt = &at
	}
	return v
}

// finishLocked ends the session with answered questions counted.
func (s *Session) finishLocked(answered int) domain.SessionResult {
	s.cancelAutoLocked()
	if s.machine != nil {
		s.machine.Close()
	}
	s.phase = domain.PhaseFinished
	res := domain.SessionResult{
		SessionID: s.id,
		Mode:      s.mode,
		Total:     answered,
		Correct:   s.correct,
		Score:     s.score,
		MaxStreak: s.maxStreak,
	}
	s.result = &res
	return res
}
