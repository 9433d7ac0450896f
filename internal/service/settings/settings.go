// Package settings stores per-learner voice quiz settings and the privacy
// acknowledgement.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

const (
	DefaultQuestionCount = 10
	DefaultAutoDelayMs   = 3000
	MaxAutoDelayMs       = 60000
)

func Defaults() domain.VoiceSettings {
	return domain.VoiceSettings{
		QuestionCount: DefaultQuestionCount,
		AutoAdvance:   false,
		AutoDelayMs:   DefaultAutoDelayMs,
	}
}

// Sanitize coerces out-of-range values to their defaults: the question count
// must be 5 or 10 and the delay positive.
func Sanitize(s domain.VoiceSettings) domain.VoiceSettings {
	if s.QuestionCount != 5 && s.QuestionCount != 10 {
		s.QuestionCount = DefaultQuestionCount
	}
	if s.AutoDelayMs <= 0 {
		s.AutoDelayMs = DefaultAutoDelayMs
	}
	if s.AutoDelayMs > MaxAutoDelayMs {
		s.AutoDelayMs = MaxAutoDelayMs
	}
	return s
}

// AutoDelay is the pause before auto-advancing to the next question.
func AutoDelay(s domain.VoiceSettings) time.Duration {
	return time.Duration(Sanitize(s).AutoDelayMs) * time.Millisecond
}

type Service struct {
	store ports.Store
	log   *zap.Logger
}

func NewService(store ports.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// Get never fails on bad stored data; it falls back to defaults.
func (s *Service) Get(ctx context.Context, learnerID string) (domain.VoiceSettings, error) {
	raw, err := s.store.Get(ctx, domain.LearnerKey(learnerID, domain.KeyVoiceSettings))
	if errors.Is(err, ports.ErrNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return domain.VoiceSettings{}, fmt.Errorf("read settings: %w", err)
	}

	var v domain.VoiceSettings
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.Warn("Discarding unreadable settings", zap.String("learner_id", learnerID), zap.Error(err))
		return Defaults(), nil
	}
	return Sanitize(v), nil
}

func (s *Service) Save(ctx context.Context, learnerID string, v domain.VoiceSettings) (domain.VoiceSettings, error) {
	v = Sanitize(v)
	b, err := json.Marshal(v)
	if err != nil {
		return domain.VoiceSettings{}, err
	}
	if err := s.store.Set(ctx, domain.LearnerKey(learnerID, domain.KeyVoiceSettings), string(b)); err != nil {
		return domain.VoiceSettings{}, fmt.Errorf("save settings: %w", err)
	}
	return v, nil
}

func (s *Service) PrivacyAcknowledged(ctx context.Context, learnerID string) (bool, error) {
	raw, err := s.store.Get(ctx, domain.LearnerKey(learnerID, domain.KeyPrivacyAck))
	if errors.Is(err, ports.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read privacy ack: %w", err)
	}
	return raw == "1", nil
}

func (s *Service) AcknowledgePrivacy(ctx context.Context, learnerID string) error {
	if err := s.store.Set(ctx, domain.LearnerKey(learnerID, domain.KeyPrivacyAck), "1"); err != nil {
		return fmt.Errorf("save privacy ack: %w", err)
	}
	return nil
}
