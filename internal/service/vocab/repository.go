package vocab

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
)

// Repository holds the loaded vocabulary. Reads are safe for concurrent use;
// Replace swaps the whole list at once.
type Repository struct {
	mu    sync.RWMutex
	items []domain.VocabItem
	byKey map[string]int
	mood  []domain.VocabItem
	log   *zap.Logger
}

func NewRepository(items []domain.VocabItem, log *zap.Logger) *Repository {
	r := &Repository{log: log}
	r.Replace(items)
	return r
}

// LoadFile parses path and logs every skipped row.
func LoadFile(path string, log *zap.Logger) (*Repository, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab file: %w", err)
	}
	defer f.Close()

	items, issues, err := Parse(f)
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		log.Warn("Skipping vocab row", zap.Int("line", is.Line), zap.String("word", is.Word), zap.Error(is.Err))
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("vocab file %s has no usable rows", path)
	}

	log.Info("Vocabulary loaded",
		zap.String("path", path),
		zap.Int("items", len(items)),
		zap.Int("skipped", len(issues)),
	)
	return NewRepository(items, log), nil
}

func (r *Repository) Replace(items []domain.VocabItem) {
	byKey := make(map[string]int, len(items))
	var mood []domain.VocabItem
	for i, it := range items {
		if _, dup := byKey[it.Key()]; dup {
			r.log.Debug("Duplicate vocab key, keeping first", zap.String("key", it.Key()))
			continue
		}
		byKey[it.Key()] = i
		if it.Polarity != domain.PolarityNone {
			mood = append(mood, it)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = items
	r.byKey = byKey
	r.mood = mood
}

func (r *Repository) All() []domain.VocabItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Lookup finds an item by its word#reading key.
func (r *Repository) Lookup(key string) (domain.VocabItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byKey[key]
	if !ok {
		return domain.VocabItem{}, false
	}
	return r.items[i], true
}

// MoodPool lists the items that carry a polarity.
func (r *Repository) MoodPool() []domain.VocabItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mood
}

// Pick returns n random items.
func (r *Repository) Pick(n int, rng *rand.Rand) []domain.VocabItem {
	return Sample(r.All(), n, rng)
}
