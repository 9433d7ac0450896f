// Package progress keeps each learner's correct/wrong stocks and per-word
// answer statistics.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

// DefaultTopWrongLimit caps TopWrong when the caller passes 0.
const DefaultTopWrongLimit = 50

type Service struct {
	store ports.Store
	log   *zap.Logger
}

func NewService(store ports.Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// AddCorrect stocks id as correct, drops it from the wrong stock and counts
// a correct answer.
func (s *Service) AddCorrect(ctx context.Context, learnerID, id string) error {
	if err := s.addTo(ctx, learnerID, domain.KeyCorrectIDs, id); err != nil {
		return err
	}
	if err := s.removeFrom(ctx, learnerID, domain.KeyWrongIDs, id); err != nil {
		return err
	}
	return s.Bump(ctx, learnerID, id, true)
}

func (s *Service) AddWrong(ctx context.Context, learnerID, id string) error {
	if err := s.addTo(ctx, learnerID, domain.KeyWrongIDs, id); err != nil {
		return err
	}
	return s.Bump(ctx, learnerID, id, false)
}

// MoveWrongToCorrect is used when a missed word is answered right in review.
func (s *Service) MoveWrongToCorrect(ctx context.Context, learnerID, id string) error {
	if err := s.removeFrom(ctx, learnerID, domain.KeyWrongIDs, id); err != nil {
		return err
	}
	if err := s.addTo(ctx, learnerID, domain.KeyCorrectIDs, id); err != nil {
		return err
	}
	return s.Bump(ctx, learnerID, id, true)
}

func (s *Service) CorrectIDs(ctx context.Context, learnerID string) ([]string, error) {
	return s.ids(ctx, learnerID, domain.KeyCorrectIDs)
}

// WrongIDs lists wrong ids in the order they were first missed.
func (s *Service) WrongIDs(ctx context.Context, learnerID string) ([]string, error) {
	return s.ids(ctx, learnerID, domain.KeyWrongIDs)
}

func (s *Service) Counts(ctx context.Context, learnerID string) (domain.StockCounts, error) {
	c, err := s.CorrectIDs(ctx, learnerID)
	if err != nil {
		return domain.StockCounts{}, err
	}
	w, err := s.WrongIDs(ctx, learnerID)
	if err != nil {
		return domain.StockCounts{}, err
	}
	return domain.StockCounts{Correct: len(c), Wrong: len(w)}, nil
}

func (s *Service) ResetStocks(ctx context.Context, learnerID string) error {
	if err := s.store.Delete(ctx, domain.LearnerKey(learnerID, domain.KeyCorrectIDs)); err != nil {
		return fmt.Errorf("reset correct stock: %w", err)
	}
	if err := s.store.Delete(ctx, domain.LearnerKey(learnerID, domain.KeyWrongIDs)); err != nil {
		return fmt.Errorf("reset wrong stock: %w", err)
	}
	return nil
}

func (s *Service) Bump(ctx context.Context, learnerID, id string, correct bool) error {
	key := domain.LearnerKey(learnerID, domain.KeyStats)
	_, err := s.store.Update(ctx, key, func(cur string, exists bool) (string, error) {
		m := decodeStats(cur)
		st := m[id]
		if correct {
			st.Correct++
		} else {
			st.Wrong++
		}
		m[id] = st
		return encode(m)
	})
	if err != nil {
		return fmt.Errorf("bump stat %s: %w", id, err)
	}
	return nil
}

func (s *Service) Stats(ctx context.Context, learnerID string) (map[string]domain.Stat, error) {
	raw, err := s.get(ctx, domain.LearnerKey(learnerID, domain.KeyStats))
	if err != nil {
		return nil, err
	}
	return decodeStats(raw), nil
}

// List joins statistics onto items in the items' order. Words never
// answered appear with zero counts.
func (s *Service) List(ctx context.Context, learnerID string, items []domain.VocabItem) ([]domain.StatRow, error) {
	stats, err := s.Stats(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	rows := make([]domain.StatRow, 0, len(items))
	for _, it := range items {
		st := stats[it.Key()]
		total := st.Correct + st.Wrong
		var acc float64
		if total > 0 {
			acc = float64(st.Correct) / float64(total)
		}
		rows = append(rows, domain.StatRow{
			ID:       it.Key(),
			Word:     it.Word,
			Reading:  it.Reading,
			Correct:  st.Correct,
			Wrong:    st.Wrong,
			Total:    total,
			Accuracy: acc,
		})
	}
	return rows, nil
}

// TopWrong sorts by wrong count, most missed first; ties keep list order.
func (s *Service) TopWrong(ctx context.Context, learnerID string, items []domain.VocabItem, limit int) ([]domain.StatRow, error) {
	if limit <= 0 {
		limit = DefaultTopWrongLimit
	}
	rows, err := s.List(ctx, learnerID, items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Wrong > rows[j].Wrong })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Service) ResetStats(ctx context.Context, learnerID string) error {
	if err := s.store.Delete(ctx, domain.LearnerKey(learnerID, domain.KeyStats)); err != nil {
		return fmt.Errorf("reset stats: %w", err)
	}
	s.log.Info("Learner statistics reset", zap.String("learner_id", learnerID))
	return nil
}

func (s *Service) ids(ctx context.Context, learnerID, name string) ([]string, error) {
	raw, err := s.get(ctx, domain.LearnerKey(learnerID, name))
	if err != nil {
		return nil, err
	}
	return decodeIDs(raw), nil
}

func (s *Service) addTo(ctx context.Context, learnerID, name, id string) error {
	_, err := s.store.Update(ctx, domain.LearnerKey(learnerID, name), func(cur string, exists bool) (string, error) {
		ids := decodeIDs(cur)
		for _, v := range ids {
			if v == id {
				return encode(ids)
			}
		}
		return encode(append(ids, id))
	})
	if err != nil {
		return fmt.Errorf("add %s to %s: %w", id, name, err)
	}
	return nil
}

func (s *Service) removeFrom(ctx context.Context, learnerID, name, id string) error {
	_, err := s.store.Update(ctx, domain.LearnerKey(learnerID, name), func(cur string, exists bool) (string, error) {
		ids := decodeIDs(cur)
		out := ids[:0]
		for _, v := range ids {
			if v != id {
				out = append(out, v)
			}
		}
		return encode(out)
	})
	if err != nil {
		return fmt.Errorf("remove %s from %s: %w", id, name, err)
	}
	return nil
}

func (s *Service) get(ctx context.Context, key string) (string, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, ports.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}

// decodeIDs treats a missing or corrupt value as an empty stock.
func decodeIDs(raw string) []string {
	ids := []string{}
	if raw == "" {
		return ids
	}
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return []string{}
	}
	return ids
}

func decodeStats(raw string) map[string]domain.Stat {
	m := map[string]domain.Stat{}
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return map[string]domain.Stat{}
	}
	return m
}

func encode(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
