package mood

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

var (
	ErrNoItems     = errors.New("mood: no items with polarity")
	ErrUnknownItem = errors.New("mood: unknown item")
	ErrBadGuess    = errors.New("mood: guess must be pos or neg")
)

// Pool supplies the items eligible for the polarity quiz.
type Pool interface {
	MoodPool() []domain.VocabItem
	Lookup(key string) (domain.VocabItem, bool)
}

// Question is a polarity prompt. The answer is withheld until checked.
type Question struct {
	ID       string `json:"id"`
	Word     string `json:"word"`
	Reading  string `json:"reading,omitempty"`
	PosLabel string `json:"pos_label,omitempty"`
	NegLabel string `json:"neg_label,omitempty"`
}

type Verdict struct {
	ID       string           `json:"id"`
	Guess    domain.MoodGuess `json:"guess"`
	Polarity domain.Polarity  `json:"polarity"`
	Correct  bool             `json:"correct"`
}

type Quiz struct {
	pool Pool
	mu   sync.Mutex
	rng  *rand.Rand
}

func NewQuiz(pool Pool, rng *rand.Rand) *Quiz {
	return &Quiz{pool: pool, rng: rng}
}

func (q *Quiz) Pick() (Question, error) {
	items := q.pool.MoodPool()
	if len(items) == 0 {
		return Question{}, ErrNoItems
	}
	q.mu.Lock()
	it := items[q.rng.Intn(len(items))]
	q.mu.Unlock()

	return Question{
		ID:       it.Key(),
		Word:     it.Word,
		Reading:  it.Reading,
		PosLabel: it.PosLabel,
		NegLabel: it.NegLabel,
	}, nil
}

func (q *Quiz) Check(id string, guess domain.MoodGuess) (Verdict, error) {
	if guess != domain.MoodPositive && guess != domain.MoodNegative {
		return Verdict{}, ErrBadGuess
	}
	it, ok := q.pool.Lookup(id)
	if !ok || it.Polarity == domain.PolarityNone {
		return Verdict{}, ErrUnknownItem
	}
	return Verdict{
		ID:       id,
		Guess:    guess,
		Polarity: it.Polarity,
		Correct:  string(guess) == string(it.Polarity),
	}, nil
}
