package session_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

func TestIDManager_NewID(t *testing.T) {
	t.Parallel()

	t.Run("random ids are unique and url safe", func(t *testing.T) {
		ids := session.NewIDManager(session.NewMemoryCache())
		seen := make(map[string]struct{})
		for range 100 {
			id, err := ids.NewID(bg, nil)
			require.NoError(t, err)
			assert.Len(t, id, 43)
			assert.NotContains(t, id, "=")
			seen[id] = struct{}{}
		}
		assert.Len(t, seen, 100)
	})

	t.Run("skips ids in use", func(t *testing.T) {
		cache := session.NewMemoryCache()
		require.NoError(t, cache.Put(bg, "taken", session.NewSession("taken", time.Minute, epoch), time.Minute))

		candidates := []string{"taken", "taken", "free"}
		ids := session.NewIDManager(cache, session.WithIDGenerator(func() (string, error) {
			id := candidates[0]
			candidates = candidates[1:]
			return id, nil
		}))

		id, err := ids.NewID(bg, nil)
		require.NoError(t, err)
		assert.Equal(t, "free", id)
	})

	t.Run("bounded attempts", func(t *testing.T) {
		cache := session.NewMemoryCache()
		require.NoError(t, cache.Put(bg, "taken", session.NewSession("taken", time.Minute, epoch), time.Minute))

		ids := session.NewIDManager(cache,
			session.WithMaxIDAttempts(3),
			session.WithIDGenerator(func() (string, error) { return "taken", nil }),
		)
		_, err := ids.NewID(bg, nil)
		assert.ErrorIs(t, err, session.ErrIDGeneration)
	})

	t.Run("generator failure", func(t *testing.T) {
		boom := errors.New("entropy exhausted")
		ids := session.NewIDManager(session.NewMemoryCache(),
			session.WithIDGenerator(func() (string, error) { return "", boom }),
		)
		_, err := ids.NewID(bg, nil)
		assert.ErrorIs(t, err, session.ErrIDGeneration)
		assert.ErrorIs(t, err, boom)
	})
}

func TestIDManager_Registration(t *testing.T) {
	t.Parallel()

	cache := session.NewMemoryCache()
	ids := session.NewIDManager(cache)
	sess := session.NewSession("id-1", time.Minute, epoch)

	require.NoError(t, ids.RegisterSession(bg, sess))
	inUse, err := ids.IDInUse(bg, "id-1")
	require.NoError(t, err)
	assert.True(t, inUse)

	j := &journal{}
	sess.SetAttribute("a", &boundValue{Name: "a", journal: j})

	require.NoError(t, ids.UnregisterSession(bg, sess))
	inUse, _ = ids.IDInUse(bg, "id-1")
	assert.False(t, inUse)
	assert.True(t, sess.IsValid(), "unregistering does not invalidate")
	assert.Equal(t, []string{"bound:a:a"}, j.all())

	assert.ErrorIs(t, ids.RegisterSession(bg, nil), session.ErrInvalidSession)
}

func TestIDManager_InvalidateAll(t *testing.T) {
	t.Parallel()

	cache := session.NewMemoryCache()
	ids := session.NewIDManager(cache)
	require.NoError(t, ids.RegisterSession(bg, session.NewSession("id-1", time.Minute, epoch)))

	require.NoError(t, ids.InvalidateAll(bg, "id-1"))
	inUse, _ := ids.IDInUse(bg, "id-1")
	assert.False(t, inUse)

	assert.NoError(t, ids.InvalidateAll(bg, "id-1"), "missing ids are ignored")
}

func TestIDManager_ClusterAndNodeID(t *testing.T) {
	t.Parallel()

	ids := session.NewIDManager(session.NewMemoryCache())
	assert.Equal(t, "abc", ids.ClusterID("abc"))
	assert.Equal(t, "abc", ids.NodeID("abc", nil))
}
