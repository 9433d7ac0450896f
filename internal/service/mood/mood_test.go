package mood

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
)

func frame(kv ...interface{}) []domain.Blendshape {
	var out []domain.Blendshape
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, domain.Blendshape{Name: kv[i].(string), Score: kv[i+1].(float64)})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name   string
		scores domain.MoodScores
		guess  domain.MoodGuess
		neg    float64
	}{
		{"neutral", domain.MoodScores{}, domain.MoodWait, 0},
		{"smile", domain.MoodScores{Smile: 0.3}, domain.MoodPositive, 0},
		{"frown", domain.MoodScores{Frown: 0.4}, domain.MoodNegative, 0.4},
		{"scowl", domain.MoodScores{BrowDown: 1, EyeSquint: 1}, domain.MoodNegative, 0.6},
		{"open mouth", domain.MoodScores{JawOpen: 1}, domain.MoodNegative, 0.6},
		{"laughing open mouth", domain.MoodScores{Smile: 0.3, JawOpen: 1}, domain.MoodPositive, 0},
		{"below threshold", domain.MoodScores{Smile: 0.1}, domain.MoodWait, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(tt.scores, cfg)
			assert.Equal(t, tt.guess, r.Guess)
			assert.InDelta(t, tt.neg, r.Negative, 1e-9)
			assert.InDelta(t, r.Positive-r.Negative, r.Mood, 1e-9)
		})
	}
}

func TestEstimator_SmoothsAndConfirmsAfterDwell(t *testing.T) {
	e := NewEstimator(DefaultConfig())
	smile := frame("mouthSmileLeft", 0.8, "mouthSmileRight", 0.8)
	t0 := time.Unix(0, 0)

	r := e.Observe(smile, t0)
	assert.InDelta(t, 0.16, r.Scores.Smile, 1e-9)
	assert.Equal(t, domain.MoodWait, r.Guess)

	for i := 1; i <= 10; i++ {
		r = e.Observe(smile, t0.Add(time.Duration(i)*100*time.Millisecond))
		require.Equal(t, domain.MoodPositive, r.Guess)
		require.False(t, r.Confirmed, "frame %d", i)
	}

	r = e.Observe(smile, t0.Add(1100*time.Millisecond))
	assert.True(t, r.Confirmed)
	assert.Equal(t, domain.MoodPositive, r.Guess)

	r = e.Observe(frame("mouthFrownLeft", 1.0, "mouthFrownRight", 1.0), t0.Add(1200*time.Millisecond))
	assert.True(t, r.Confirmed)
	assert.Equal(t, domain.MoodPositive, r.Guess)

	e.Reset()
	r = e.Observe(smile, t0.Add(1300*time.Millisecond))
	assert.False(t, r.Confirmed)
}

func TestEstimator_WaitBreaksDwell(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 0
	e := NewEstimator(cfg)
	t0 := time.Unix(0, 0)
	frown := frame("mouthFrownLeft", 0.5, "mouthFrownRight", 0.5)

	e.Observe(frown, t0)
	e.Observe(nil, t0.Add(900*time.Millisecond))
	r := e.Observe(frown, t0.Add(1000*time.Millisecond))
	assert.Equal(t, domain.MoodNegative, r.Guess)
	assert.False(t, r.Confirmed)

	r = e.Observe(frown, t0.Add(2000*time.Millisecond))
	assert.True(t, r.Confirmed)
	assert.Equal(t, domain.MoodNegative, r.Guess)
}

func TestEstimator_Calibrate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Alpha = 0
	e := NewEstimator(cfg)
	resting := frame("mouthFrownLeft", 0.3, "mouthFrownRight", 0.3)

	r := e.Observe(resting, time.Unix(0, 0))
	assert.Equal(t, domain.MoodNegative, r.Guess)

	e.Calibrate(nil)
	r = e.Observe(resting, time.Unix(1, 0))
	assert.Equal(t, domain.MoodWait, r.Guess)
	assert.Zero(t, r.Scores.Frown)
}

func TestQuiz(t *testing.T) {
	repo := vocab.NewRepository([]domain.VocabItem{
		{Word: "あはれ", Reading: "あわれ", Polarity: domain.PolarityPositive},
		{Word: "まづし", Reading: "まずし", Polarity: domain.PolarityNegative, NegLabel: "貧しい"},
		{Word: "ゆかし", Reading: "ゆかし"},
	}, zap.NewNop())
	q := NewQuiz(repo, rand.New(rand.NewSource(7)))

	for i := 0; i < 20; i++ {
		got, err := q.Pick()
		require.NoError(t, err)
		assert.NotEqual(t, "ゆかし#ゆかし", got.ID)
	}

	v, err := q.Check("まづし#まずし", domain.MoodNegative)
	require.NoError(t, err)
	assert.True(t, v.Correct)

	v, err = q.Check("あはれ#あわれ", domain.MoodNegative)
	require.NoError(t, err)
	assert.False(t, v.Correct)

	_, err = q.Check("ゆかし#ゆかし", domain.MoodPositive)
	assert.ErrorIs(t, err, ErrUnknownItem)
	_, err = q.Check("あはれ#あわれ", domain.MoodWait)
	assert.ErrorIs(t, err, ErrBadGuess)

	empty := NewQuiz(vocab.NewRepository(nil, zap.NewNop()), rand.New(rand.NewSource(1)))
	_, err = empty.Pick()
	assert.ErrorIs(t, err, ErrNoItems)
}
