// Package storetest holds behaviour checks shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kogoto-lab/kogoto/internal/ports"
)

// Run exercises s. Keys are namespaced by the test name so a shared backend
// can be reused across runs.
func Run(t *testing.T, s ports.Store) {
	t.Helper()
	ctx := context.Background()
	ns := t.Name() + ":"

	t.Run("missing key", func(t *testing.T) {
		_, err := s.Get(ctx, ns+"missing")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("set get delete", func(t *testing.T) {
		key := ns + "kogoto.voiceSettings"
		require.NoError(t, s.Set(ctx, key, `{"question_count":5}`))

		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"question_count":5}`, v)

		require.NoError(t, s.Set(ctx, key, `{"question_count":10}`))
		v, err = s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, `{"question_count":10}`, v)

		require.NoError(t, s.Delete(ctx, key))
		_, err = s.Get(ctx, key)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.NoError(t, s.Delete(ctx, key))
	})

	t.Run("incr", func(t *testing.T) {
		key := ns + "wallet"
		n, err := s.IncrBy(ctx, key, 12)
		require.NoError(t, err)
		assert.Equal(t, int64(12), n)

		n, err = s.IncrBy(ctx, key, -5)
		require.NoError(t, err)
		assert.Equal(t, int64(7), n)

		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "7", v)
	})

	t.Run("update sees absence", func(t *testing.T) {
		key := ns + "fresh"
		got, err := s.Update(ctx, key, func(cur string, exists bool) (string, error) {
			assert.False(t, exists)
			assert.Empty(t, cur)
			return "[]", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "[]", got)

		_, err = s.Update(ctx, key, func(cur string, exists bool) (string, error) {
			assert.True(t, exists)
			assert.Equal(t, "[]", cur)
			return cur, nil
		})
		require.NoError(t, err)
	})

	t.Run("update error leaves value", func(t *testing.T) {
		key := ns + "keep"
		require.NoError(t, s.Set(ctx, key, "a"))
		boom := errors.New("boom")

		_, err := s.Update(ctx, key, func(string, bool) (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)

		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "a", v)
	})

	t.Run("concurrent updates", func(t *testing.T) {
		key := ns + "counter"
		const workers = 8
		const perWorker = 10

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					_, err := s.Update(ctx, key, func(cur string, exists bool) (string, error) {
						n := 0
						if exists {
							n, _ = strconv.Atoi(cur)
						}
						return strconv.Itoa(n + 1), nil
					})
					if err != nil && !errors.Is(err, ports.ErrConflict) {
						t.Errorf("update: %v", err)
					}
				}
			}()
		}
		wg.Wait()

		v, err := s.Get(ctx, key)
		require.NoError(t, err)
		n, _ := strconv.Atoi(v)
		assert.LessOrEqual(t, n, workers*perWorker)
		assert.Greater(t, n, 0)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, s.Ping(ctx))
	})
}
