package session

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/adapter/events"
	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/mocks"
	"github.com/kogoto-lab/kogoto/internal/service/answer"
	"github.com/kogoto-lab/kogoto/internal/service/attempt"
	"github.com/kogoto-lab/kogoto/internal/service/progress"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
	"github.com/kogoto-lab/kogoto/internal/service/settings"
	"github.com/kogoto-lab/kogoto/internal/service/vocab"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testItems = []domain.VocabItem{
	{Word: "あはれ", Reading: "あわれ", Choices: domain.ChoiceSet{"しみじみとした趣", "腹立たしい", "恐ろしい", "退屈だ"}, Correct: 1},
	{Word: "まづし", Reading: "まずし", Choices: domain.ChoiceSet{"幸せ", "まずしい（貧しい）", "美しい", "悲しい"}, Correct: 2},
	{Word: "わろし", Reading: "わろし", Choices: domain.ChoiceSet{"笑える", "若い", "よくない", "正しい"}, Correct: 3},
}

type fixture struct {
	svc      *Service
	clock    *attempt.ManualClock
	repo     *vocab.Repository
	progress *progress.Service
	rewards  *reward.Service
	settings *settings.Service
	bus      *events.Bus

	mu      sync.Mutex
	answers []domain.AnswerEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()
	store := mocks.NewMockStore()
	bus := events.NewBus(log)

	f := &fixture{
		clock:    attempt.NewManualClock(time.Unix(1000, 0)),
		repo:     vocab.NewRepository(testItems, log),
		progress: progress.NewService(store, log),
		rewards:  reward.NewService(store, bus, log),
		settings: settings.NewService(store, log),
		bus:      bus,
	}
	bus.Subscribe(domain.EventAnswer, func(e domain.Event) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.answers = append(f.answers, e.(domain.AnswerEvent))
	})

	cfg := DefaultConfig()
	cfg.IdleTimeout = 10 * time.Minute
	f.svc = NewService(Deps{
		Vocab:    f.repo,
		Progress: f.progress,
		Wallet:   f.rewards,
		Settings: f.settings,
		Matcher:  answer.NewMatcher(log),
		Bus:      bus,
	}, cfg, log, WithClock(f.clock), WithRand(rand.New(rand.NewSource(42))))
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) correctOf(t *testing.T, v domain.SessionView) int {
	t.Helper()
	require.NotNil(t, v.Question)
	it, ok := f.repo.Lookup(vocab.ItemID(v.Question.Word, v.Question.Reading))
	require.True(t, ok)
	return it.Correct
}

func (f *fixture) wrongOf(t *testing.T, v domain.SessionView) int {
	return f.correctOf(t, v)%4 + 1
}

func (f *fixture) answerEvents() []domain.AnswerEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.AnswerEvent(nil), f.answers...)
}

func TestService_CreateHidesAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, "l1", "")
	require.NoError(t, err)

	assert.Equal(t, domain.ModeAll, v.Mode)
	assert.Equal(t, domain.PhaseActive, v.Phase)
	require.NotNil(t, v.Question)
	assert.Equal(t, 1, v.Question.Number)
	assert.Equal(t, 3, v.Question.Total)
	assert.Zero(t, v.Question.Correct)
	assert.Equal(t, domain.AttemptIdle, v.Attempt.State)
	assert.Equal(t, 1, f.svc.Count())

	_, err = f.svc.Create(ctx, "l1", "bogus")
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestService_VoiceAnswerScoresAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, "l1", domain.ModeAll)
	require.NoError(t, err)
	correct := f.correctOf(t, v)

	_, err = f.svc.Start(ctx, "l1", v.ID)
	require.NoError(t, err)
	f.clock.Advance(attempt.DefaultConfig().GoOffset())

	res, v, err := f.svc.SubmitUtterance(ctx, "l1", v.ID, v.Question.Choices.At(correct))
	require.NoError(t, err)
	assert.True(t, res.Resolved())
	assert.Equal(t, correct, res.Index)

	assert.Equal(t, domain.AttemptDone, v.Attempt.State)
	assert.Equal(t, correct, v.Question.Correct)
	assert.Equal(t, 100, v.Score)
	assert.Equal(t, 1, v.Streak)
	assert.Equal(t, 1, v.CorrectCount)

	ids, err := f.progress.CorrectIDs(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{vocab.ItemID(v.Question.Word, v.Question.Reading)}, ids)

	bal, err := f.rewards.Balance(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)

	evs := f.answerEvents()
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Correct)
	assert.Equal(t, domain.SourceVoice, evs[0].Source)
	assert.Equal(t, 100, evs[0].Awarded)

	_, err = f.svc.Select(ctx, "l1", v.ID, 1)
	assert.ErrorIs(t, err, attempt.ErrAlreadyDone)
	assert.Len(t, f.answerEvents(), 1)
}

func TestService_StreakAndResult(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, err := f.svc.Create(ctx, "l1", domain.ModeAll)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		v, err = f.svc.Select(ctx, "l1", v.ID, f.correctOf(t, v))
		require.NoError(t, err)
		if i < 2 {
			v, err = f.svc.Next(ctx, "l1", v.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.AttemptCountdown, v.Attempt.State)
		}
	}
	assert.Equal(t, 100+120+140, v.Score)
	assert.Equal(t, 3, v.MaxStreak)

	_, err = f.svc.Result(ctx, "l1", v.ID)
	assert.ErrorIs(t, err, ErrNotFinished)

	v, err = f.svc.Next(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFinished, v.Phase)
	assert.Nil(t, v.Question)

	res, err := f.svc.Result(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionResult{SessionID: v.ID, Mode: domain.ModeAll, Total: 3, Correct: 3, Score: 360, MaxStreak: 3}, res)

	_, err = f.svc.Next(ctx, "l1", v.ID)
	assert.ErrorIs(t, err, ErrFinished)
}

func TestService_WrongAnswerResetsStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	v, err := f.svc.Select(ctx, "l1", v.ID, f.correctOf(t, v))
	require.NoError(t, err)
	v, err = f.svc.Next(ctx, "l1", v.ID)
	require.NoError(t, err)

	wrongItem := vocab.ItemID(v.Question.Word, v.Question.Reading)
	v, err = f.svc.Select(ctx, "l1", v.ID, f.wrongOf(t, v))
	require.NoError(t, err)

	assert.Zero(t, v.Streak)
	assert.Equal(t, 1, v.MaxStreak)
	assert.Equal(t, 100, v.Score)

	wrong, err := f.progress.WrongIDs(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{wrongItem}, wrong)
}

func TestService_NextRequiresAnswer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	_, err := f.svc.Next(ctx, "l1", v.ID)
	assert.ErrorIs(t, err, ErrNotAnswered)
}

func TestService_QuitCountsAnswered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	v, _ = f.svc.Select(ctx, "l1", v.ID, f.correctOf(t, v))
	v, err := f.svc.Next(ctx, "l1", v.ID)
	require.NoError(t, err)

	res, err := f.svc.Quit(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Correct)
	assert.Zero(t, f.clock.Pending())

	again, err := f.svc.Quit(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestService_QuitAfterAnswerCountsCurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	_, err := f.svc.Select(ctx, "l1", v.ID, f.wrongOf(t, v))
	require.NoError(t, err)

	res, err := f.svc.Quit(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Zero(t, res.Correct)
}

func TestService_MissedMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, "l1", domain.ModeMissed)
	assert.ErrorIs(t, err, ErrNoQuestions)

	require.NoError(t, f.progress.AddWrong(ctx, "l1", testItems[2].Key()))
	require.NoError(t, f.progress.AddWrong(ctx, "l1", testItems[0].Key()))

	v, err := f.svc.Create(ctx, "l1", domain.ModeMissed)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Question.Total)
	assert.Equal(t, "あはれ", v.Question.Word)

	_, err = f.svc.Select(ctx, "l1", v.ID, 1)
	require.NoError(t, err)

	wrong, _ := f.progress.WrongIDs(ctx, "l1")
	correct, _ := f.progress.CorrectIDs(ctx, "l1")
	assert.Equal(t, []string{testItems[2].Key()}, wrong)
	assert.Equal(t, []string{testItems[0].Key()}, correct)
}

func TestService_AutoAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.settings.Save(ctx, "l1", domain.VoiceSettings{QuestionCount: 5, AutoAdvance: true, AutoDelayMs: 1500})
	require.NoError(t, err)

	v, err := f.svc.Create(ctx, "l1", domain.ModeAll)
	require.NoError(t, err)
	assert.True(t, v.AutoAdvance)

	v, err = f.svc.Select(ctx, "l1", v.ID, f.correctOf(t, v))
	require.NoError(t, err)
	require.NotNil(t, v.AutoNextAt)
	assert.Equal(t, f.clock.Now().Add(1500*time.Millisecond), *v.AutoNextAt)

	f.clock.Advance(1499 * time.Millisecond)
	v, _ = f.svc.Get(ctx, "l1", v.ID)
	assert.Equal(t, 1, v.Question.Number)

	f.clock.Advance(time.Millisecond)
	v, _ = f.svc.Get(ctx, "l1", v.ID)
	assert.Equal(t, 2, v.Question.Number)
	assert.Equal(t, domain.AttemptCountdown, v.Attempt.State)
	assert.Nil(t, v.AutoNextAt)

	v, err = f.svc.Select(ctx, "l1", v.ID, f.correctOf(t, v))
	require.NoError(t, err)
	v, err = f.svc.Next(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Question.Number)

	f.clock.Advance(10 * time.Second)
	v, _ = f.svc.Get(ctx, "l1", v.ID)
	assert.Equal(t, 3, v.Question.Number)
}

func TestService_RetryAfterSilence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := attempt.DefaultConfig()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	_, err := f.svc.Retry(ctx, "l1", v.ID)
	assert.ErrorIs(t, err, attempt.ErrInvalidTransition)

	_, err = f.svc.Start(ctx, "l1", v.ID)
	require.NoError(t, err)
	f.clock.Advance(cfg.GoOffset() + cfg.AnswerWindow)

	v, _ = f.svc.Get(ctx, "l1", v.ID)
	assert.True(t, v.Attempt.NoResult)

	v, err = f.svc.Retry(ctx, "l1", v.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Attempt.Try)
	assert.Equal(t, domain.AttemptCountdown, v.Attempt.State)
}

func TestService_Ownership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	_, err := f.svc.Get(ctx, "l2", v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Select(ctx, "l2", v.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_SweepExpiresIdleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	_, err := f.svc.Start(ctx, "l1", old.ID)
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)
	fresh, _ := f.svc.Create(ctx, "l2", domain.ModeAll)
	f.clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, f.svc.Sweep())
	_, err = f.svc.Get(ctx, "l1", old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Get(ctx, "l2", fresh.ID)
	assert.NoError(t, err)
}

func TestService_AttemptEventsPublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	var types []string
	var prompts []string
	f.bus.Subscribe(domain.EventAttempt, func(e domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		ev := e.(domain.AttemptEvent)
		types = append(types, ev.Type)
		if ev.Prompt != "" {
			prompts = append(prompts, ev.Prompt)
		}
	})

	v, _ := f.svc.Create(ctx, "l1", domain.ModeAll)
	started, err := f.svc.Start(ctx, "l1", v.ID)
	require.NoError(t, err)
	require.NotNil(t, started.Question)
	f.clock.Advance(attempt.DefaultConfig().GoOffset())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{attempt.EventCountdown, attempt.EventWindowOpened}, types)
	require.Len(t, prompts, 1)
	assert.Equal(t, started.Question.Word, prompts[0])
}
