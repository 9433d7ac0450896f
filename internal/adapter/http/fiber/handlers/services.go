package handlers

import (
	"context"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/service/auth"
	"github.com/kogoto-lab/kogoto/internal/service/mood"
	"github.com/kogoto-lab/kogoto/internal/service/reward"
)

// The interfaces below are the slices of the services each handler uses.

type GuestAuth interface {
	IssueGuest(ctx context.Context) (auth.Token, error)
	Refresh(ctx context.Context, token string) (auth.Token, error)
}

type AnswerMatcher interface {
	Match(utterance string, choices domain.ChoiceSet) domain.MatchResult
}

type SessionService interface {
	Create(ctx context.Context, learnerID string, mode domain.SessionMode) (domain.SessionView, error)
	Get(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Start(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Retry(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	SubmitUtterance(ctx context.Context, learnerID, id, text string) (domain.MatchResult, domain.SessionView, error)
	Select(ctx context.Context, learnerID, id string, choice int) (domain.SessionView, error)
	Next(ctx context.Context, learnerID, id string) (domain.SessionView, error)
	Quit(ctx context.Context, learnerID, id string) (domain.SessionResult, error)
	Result(ctx context.Context, learnerID, id string) (domain.SessionResult, error)
	Remove(learnerID, id string) error
}

type ProgressService interface {
	Counts(ctx context.Context, learnerID string) (domain.StockCounts, error)
	List(ctx context.Context, learnerID string, items []domain.VocabItem) ([]domain.StatRow, error)
	TopWrong(ctx context.Context, learnerID string, items []domain.VocabItem, limit int) ([]domain.StatRow, error)
	ResetStats(ctx context.Context, learnerID string) error
	ResetStocks(ctx context.Context, learnerID string) error
}

type VocabSource interface {
	All() []domain.VocabItem
}

type RewardService interface {
	Balance(ctx context.Context, learnerID string) (int64, error)
	Friend(ctx context.Context, learnerID string) (domain.FriendView, error)
	Feed(ctx context.Context, learnerID string, amount int64) (reward.FeedResult, error)
}

type SettingsService interface {
	Get(ctx context.Context, learnerID string) (domain.VoiceSettings, error)
	Save(ctx context.Context, learnerID string, v domain.VoiceSettings) (domain.VoiceSettings, error)
	PrivacyAcknowledged(ctx context.Context, learnerID string) (bool, error)
	AcknowledgePrivacy(ctx context.Context, learnerID string) error
}

type MoodQuiz interface {
	Pick() (mood.Question, error)
	Check(id string, guess domain.MoodGuess) (mood.Verdict, error)
}
