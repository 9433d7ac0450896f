// Package reward scores answers and manages wallet points and the pet's
// friend level.
package reward

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

const (
	BaseScore     = 100
	StreakBonus   = 20
	MaxBonus      = 200
	WalletDivisor = 10
)

var ErrInvalidAmount = errors.New("reward: amount must be positive")

// ScoreFor returns the points for a correct answer that brought the streak
// to streak.
func ScoreFor(streak int) int {
	bonus := StreakBonus * (streak - 1)
	if bonus < 0 {
		bonus = 0
	}
	if bonus > MaxBonus {
		bonus = MaxBonus
	}
	return BaseScore + bonus
}

// WalletCredit converts a question score to wallet points.
func WalletCredit(score int) int64 {
	return int64(score / WalletDivisor)
}

// LevelNeed is the number of friend points needed to go from level to
// level+1.
func LevelNeed(level int) int64 {
	return 100 + 50*int64(level-1)
}

func FriendFromTotal(total int64) domain.FriendView {
	if total < 0 {
		total = 0
	}
	level, rem := 1, total
	for rem >= LevelNeed(level) {
		rem -= LevelNeed(level)
		level++
	}
	need := LevelNeed(level)
	return domain.FriendView{
		Level:    level,
		Total:    total,
		Cur:      rem,
		Need:     need,
		Progress: float64(rem) / float64(need),
	}
}

// ComboTier selects the pet animation intensity for a friend level.
func ComboTier(level int) int {
	switch {
	case level >= 5:
		return 2
	case level >= 3:
		return 1
	}
	return 0
}

type FeedResult struct {
	Spent     int64             `json:"spent"`
	Balance   int64             `json:"balance"`
	Friend    domain.FriendView `json:"friend"`
	LeveledUp bool              `json:"leveled_up"`
	ComboTier int               `json:"combo_tier"`
}

type Service struct {
	store ports.Store
	bus   ports.EventBus
	log   *zap.Logger
}

func NewService(store ports.Store, bus ports.EventBus, log *zap.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

func (s *Service) Balance(ctx context.Context, learnerID string) (int64, error) {
	return s.counter(ctx, domain.LearnerKey(learnerID, domain.KeyWallet))
}

func (s *Service) Earn(ctx context.Context, learnerID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	if amount == 0 {
		return s.Balance(ctx, learnerID)
	}
	bal, err := s.store.IncrBy(ctx, domain.LearnerKey(learnerID, domain.KeyWallet), amount)
	if err != nil {
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	s.bus.Publish(domain.WalletEvent{LearnerID: learnerID, Balance: bal, Delta: amount})
	return bal, nil
}

// Spend takes up to amount from the wallet and reports what was taken.
func (s *Service) Spend(ctx context.Context, learnerID string, amount int64) (spent, balance int64, err error) {
	if amount <= 0 {
		return 0, 0, ErrInvalidAmount
	}
	_, err = s.store.Update(ctx, domain.LearnerKey(learnerID, domain.KeyWallet), func(cur string, exists bool) (string, error) {
		bal := parseCounter(cur)
		spent = amount
		if spent > bal {
			spent = bal
		}
		balance = bal - spent
		return strconv.FormatInt(balance, 10), nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("spend wallet: %w", err)
	}
	if spent > 0 {
		s.bus.Publish(domain.WalletEvent{LearnerID: learnerID, Balance: balance, Delta: -spent})
	}
	return spent, balance, nil
}

func (s *Service) Friend(ctx context.Context, learnerID string) (domain.FriendView, error) {
	total, err := s.counter(ctx, domain.LearnerKey(learnerID, domain.KeyFriendPoints))
	if err != nil {
		return domain.FriendView{}, err
	}
	return FriendFromTotal(total), nil
}

func (s *Service) AddFriendPoints(ctx context.Context, learnerID string, points int64) (domain.FriendView, bool, error) {
	if points <= 0 {
		return domain.FriendView{}, false, ErrInvalidAmount
	}
	total, err := s.store.IncrBy(ctx, domain.LearnerKey(learnerID, domain.KeyFriendPoints), points)
	if err != nil {
		return domain.FriendView{}, false, fmt.Errorf("add friend points: %w", err)
	}
	view := FriendFromTotal(total)
	leveledUp := FriendFromTotal(total-points).Level < view.Level

	s.bus.Publish(domain.FriendEvent{LearnerID: learnerID, Friend: view, LeveledUp: leveledUp})
	if leveledUp {
		s.log.Info("Friend leveled up",
			zap.String("learner_id", learnerID),
			zap.Int("level", view.Level),
		)
	}
	return view, leveledUp, nil
}

// Feed spends wallet points on the pet, turning them into friend points.
func (s *Service) Feed(ctx context.Context, learnerID string, amount int64) (FeedResult, error) {
	spent, balance, err := s.Spend(ctx, learnerID, amount)
	if err != nil {
		return FeedResult{}, err
	}
	res := FeedResult{Spent: spent, Balance: balance}
	if spent == 0 {
		res.Friend, err = s.Friend(ctx, learnerID)
		if err != nil {
			return FeedResult{}, err
		}
		res.ComboTier = ComboTier(res.Friend.Level)
		return res, nil
	}

	res.Friend, res.LeveledUp, err = s.AddFriendPoints(ctx, learnerID, spent)
	if err != nil {
		return FeedResult{}, err
	}
	res.ComboTier = ComboTier(res.Friend.Level)
	return res, nil
}

func (s *Service) counter(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ports.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", key, err)
	}
	return parseCounter(raw), nil
}

func parseCounter(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
