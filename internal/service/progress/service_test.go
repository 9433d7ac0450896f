package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kogoto-lab/kogoto/internal/domain"
	"github.com/kogoto-lab/kogoto/internal/mocks"
	"github.com/kogoto-lab/kogoto/internal/ports"
)

var items = []domain.VocabItem{
	{Word: "あはれ", Reading: "あわれ"},
	{Word: "をかし", Reading: "おかし"},
	{Word: "まづし", Reading: "まずし"},
}

func newService() (*Service, *mocks.MockStore) {
	st := mocks.NewMockStore()
	return NewService(st, zap.NewNop()), st
}

func TestService_CorrectRemovesFromWrong(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.AddWrong(ctx, "l1", "あはれ#あわれ"))
	require.NoError(t, svc.AddWrong(ctx, "l1", "をかし#おかし"))
	require.NoError(t, svc.AddWrong(ctx, "l1", "あはれ#あわれ"))

	wrong, err := svc.WrongIDs(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"あはれ#あわれ", "をかし#おかし"}, wrong)

	require.NoError(t, svc.AddCorrect(ctx, "l1", "あはれ#あわれ"))

	counts, err := svc.Counts(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.StockCounts{Correct: 1, Wrong: 1}, counts)

	stats, err := svc.Stats(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, domain.Stat{Correct: 1, Wrong: 2}, stats["あはれ#あわれ"])
}

func TestService_MoveWrongToCorrect(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.AddWrong(ctx, "l1", "まづし#まずし"))
	require.NoError(t, svc.MoveWrongToCorrect(ctx, "l1", "まづし#まずし"))

	wrong, _ := svc.WrongIDs(ctx, "l1")
	correct, _ := svc.CorrectIDs(ctx, "l1")
	assert.Empty(t, wrong)
	assert.Equal(t, []string{"まづし#まずし"}, correct)
}

func TestService_LearnersAreIsolated(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	require.NoError(t, svc.AddWrong(ctx, "l1", "あはれ#あわれ"))

	counts, err := svc.Counts(ctx, "l2")
	require.NoError(t, err)
	assert.Zero(t, counts.Wrong)
	assert.Contains(t, st.Keys(), "learner:l1:kogoto.wrongIds")
}

func TestService_CorruptValuesReadAsEmpty(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()
	require.NoError(t, st.Set(ctx, domain.LearnerKey("l1", domain.KeyWrongIDs), "{not json"))
	require.NoError(t, st.Set(ctx, domain.LearnerKey("l1", domain.KeyStats), "[1,2]"))

	wrong, err := svc.WrongIDs(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, wrong)

	stats, err := svc.Stats(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, stats)

	require.NoError(t, svc.AddWrong(ctx, "l1", "x#"))
	wrong, _ = svc.WrongIDs(ctx, "l1")
	assert.Equal(t, []string{"x#"}, wrong)
}

func TestService_ListAndTopWrong(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	require.NoError(t, svc.AddCorrect(ctx, "l1", "あはれ#あわれ"))
	require.NoError(t, svc.AddWrong(ctx, "l1", "あはれ#あわれ"))
	require.NoError(t, svc.AddWrong(ctx, "l1", "まづし#まずし"))
	require.NoError(t, svc.AddWrong(ctx, "l1", "まづし#まずし"))

	rows, err := svc.List(ctx, "l1", items)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, rows[0].Total)
	assert.InDelta(t, 0.5, rows[0].Accuracy, 1e-9)
	assert.Zero(t, rows[1].Total)
	assert.Zero(t, rows[1].Accuracy)

	top, err := svc.TopWrong(ctx, "l1", items, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "まづし#まずし", top[0].ID)
	assert.Equal(t, "あはれ#あわれ", top[1].ID)

	require.NoError(t, svc.ResetStats(ctx, "l1"))
	rows, _ = svc.List(ctx, "l1", items)
	assert.Zero(t, rows[0].Total)

	counts, _ := svc.Counts(ctx, "l1")
	assert.Equal(t, 2, counts.Wrong)

	require.NoError(t, svc.AddCorrect(ctx, "l1", "あはれ#あわれ"))
	counts, _ = svc.Counts(ctx, "l1")
	assert.Equal(t, 1, counts.Wrong)
	wrong, _ := svc.WrongIDs(ctx, "l1")
	assert.Equal(t, []string{"まづし#まずし"}, wrong)
}

func TestService_StoreErrorsAreWrapped(t *testing.T) {
	svc, st := newService()
	st.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", ports.ErrUnavailable
	}
	st.UpdateFunc = func(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
		return "", errors.New("redis: connection reset")
	}

	_, err := svc.Counts(context.Background(), "l1")
	assert.ErrorIs(t, err, ports.ErrUnavailable)

	err = svc.AddWrong(context.Background(), "l1", "x#")
	assert.ErrorContains(t, err, "connection reset")
}

func TestService_AddCorrectStopsAtFirstFailedKey(t *testing.T) {
	backing := mocks.NewMockStore()
	st := mocks.NewMockStore()
	st.GetFunc = backing.Get
	svc := NewService(st, zap.NewNop())
	ctx := context.Background()

	wrongKey := domain.LearnerKey("l1", domain.KeyWrongIDs)
	failWrong := false
	var keys []string
	st.UpdateFunc = func(ctx context.Context, key string, fn ports.UpdateFunc) (string, error) {
		keys = append(keys, key)
		if failWrong && key == wrongKey {
			return "", ports.ErrUnavailable
		}
		return backing.Update(ctx, key, fn)
	}
	require.NoError(t, svc.AddWrong(ctx, "l1", "x#"))

	failWrong = true
	keys = nil
	err := svc.AddCorrect(ctx, "l1", "x#")
	assert.ErrorIs(t, err, ports.ErrUnavailable)
	assert.Equal(t, []string{domain.LearnerKey("l1", domain.KeyCorrectIDs), wrongKey}, keys)

	// Stocks are atomic per key only: the id now sits in both.
	counts, err := svc.Counts(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Correct)
	assert.Equal(t, 1, counts.Wrong)
}
