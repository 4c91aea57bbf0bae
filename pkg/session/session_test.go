package session_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

func TestSession_IsNew(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)
	assert.True(t, sess.IsNew())
	assert.Equal(t, sess.CreatedAt(), sess.LastAccessedAt())

	sess.Access(epoch.Add(time.Second))
	assert.False(t, sess.IsNew())
	assert.Equal(t, epoch.Add(time.Second), sess.LastAccessedAt())
}

func TestSession_AccessNeverGoesBackwards(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)

	// a clock that did not move still ends the new state
	sess.Access(epoch)
	assert.False(t, sess.IsNew())
	assert.True(t, sess.LastAccessedAt().After(sess.CreatedAt()))

	before := sess.LastAccessedAt()
	sess.Access(epoch.Add(-time.Hour))
	assert.True(t, sess.LastAccessedAt().After(before))
}

func TestSession_AccessClearsModified(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)
	sess.SetAttribute("k", "v")
	require.True(t, sess.IsModified())

	sess.Access(epoch.Add(time.Second))
	assert.False(t, sess.IsModified())
}

func TestSession_SetAttribute(t *testing.T) {
	t.Parallel()

	t.Run("binds new value before unbinding the old one", func(t *testing.T) {
		j := &journal{}
		sess := session.NewSession("id-1", time.Minute, epoch)

		sess.SetAttribute("cart", &boundValue{Name: "old", journal: j})
		sess.SetAttribute("cart", &boundValue{Name: "new", journal: j})

		assert.Equal(t, []string{
			"bound:cart:old",
			"bound:cart:new",
			"unbound:cart:old",
		}, j.all())

		v, ok := sess.Attribute("cart")
		require.True(t, ok)
		assert.Equal(t, "new", v.(*boundValue).Name)
	})

	t.Run("same value is bound again then unbound", func(t *testing.T) {
		j := &journal{}
		sess := session.NewSession("id-1", time.Minute, epoch)
		v := &boundValue{Name: "v", journal: j}

		sess.SetAttribute("x", v)
		sess.SetAttribute("x", v)

		assert.Equal(t, []string{"bound:x:v", "bound:x:v", "unbound:x:v"}, j.all())
	})

	t.Run("nil value removes", func(t *testing.T) {
		j := &journal{}
		sess := session.NewSession("id-1", time.Minute, epoch)
		sess.SetAttribute("x", &boundValue{Name: "v", journal: j})

		sess.SetAttribute("x", nil)

		_, ok := sess.Attribute("x")
		assert.False(t, ok)
		assert.Equal(t, []string{"bound:x:v", "unbound:x:v"}, j.all())
	})

	t.Run("plain values need no hooks", func(t *testing.T) {
		sess := session.NewSession("id-1", time.Minute, epoch)
		sess.SetAttribute("n", 1)
		sess.SetAttribute("n", 2)

		v, ok := sess.Attribute("n")
		require.True(t, ok)
		assert.Equal(t, 2, v)
		assert.True(t, sess.IsModified())
	})
}

func TestSession_RemoveAttribute(t *testing.T) {
	t.Parallel()

	j := &journal{}
	sess := session.NewSession("id-1", time.Minute, epoch)
	sess.SetAttribute("a", &boundValue{Name: "a", journal: j})
	sess.Access(epoch.Add(time.Second))

	sess.RemoveAttribute("a")
	sess.RemoveAttribute("missing")

	assert.Equal(t, []string{"bound:a:a", "unbound:a:a"}, j.all())
	assert.True(t, sess.IsModified())
	assert.Empty(t, sess.AttributeNames())
}

func TestSession_AttributeNamesSorted(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)
	for _, n := range []string{"c", "a", "b"} {
		sess.SetAttribute(n, n)
	}
	assert.Equal(t, []string{"a", "b", "c"}, sess.AttributeNames())
}

func TestSession_Invalidate(t *testing.T) {
	t.Parallel()

	t.Run("unbinds everything and removes from the cache", func(t *testing.T) {
		n := newNode(t, clockwork.NewFakeClockAt(epoch))
		sess, err := n.manager.NewSession(bg, nil)
		require.NoError(t, err)

		j := &journal{}
		sess.SetAttribute("a", &boundValue{Name: "a", journal: j})
		sess.SetAttribute("b", &boundValue{Name: "b", journal: j})

		require.NoError(t, sess.Invalidate(bg))

		assert.False(t, sess.IsValid())
		assert.Empty(t, sess.AttributeNames())
		assert.ElementsMatch(t, []string{
			"bound:a:a", "bound:b:b", "unbound:a:a", "unbound:b:b",
		}, j.all())

		_, err = n.manager.Session(bg, sess.ID())
		assert.ErrorIs(t, err, session.ErrSessionNotFound)
	})

	t.Run("second invalidation is silent", func(t *testing.T) {
		n := newNode(t, clockwork.NewFakeClockAt(epoch))
		sess, err := n.manager.NewSession(bg, nil)
		require.NoError(t, err)

		j := &journal{}
		sess.SetAttribute("a", &boundValue{Name: "a", journal: j})

		require.NoError(t, sess.Invalidate(bg))
		require.NoError(t, sess.Invalidate(bg))

		assert.Equal(t, []string{"bound:a:a", "unbound:a:a"}, j.all())
	})

	t.Run("unrestored session is left untouched", func(t *testing.T) {
		sess := session.NewSession("id-1", time.Minute, epoch)
		j := &journal{}
		sess.SetAttribute("a", &boundValue{Name: "a", journal: j})

		assert.ErrorIs(t, sess.Invalidate(bg), session.ErrNotRestored)
		assert.True(t, sess.IsValid())
		assert.Equal(t, []string{"a"}, sess.AttributeNames())
		assert.Equal(t, []string{"bound:a:a"}, j.all())
	})
}

func TestSession_ConcurrentInvalidate(t *testing.T) {
	t.Parallel()

	const (
		values   = 16
		invalids = 8
		workers  = 8
	)

	n := newNode(t, clockwork.NewFakeClockAt(epoch))
	sess, err := n.manager.NewSession(bg, nil)
	require.NoError(t, err)

	j := &journal{}
	for i := range values {
		name := fmt.Sprintf("v%d", i)
		sess.SetAttribute(name, &boundValue{Name: name, journal: j})
	}

	var wg sync.WaitGroup
	for range invalids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Invalidate(bg)
		}()
	}
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range values {
				sess.Attribute(fmt.Sprintf("v%d", i))
				name := fmt.Sprintf("w%d-%d", w, i)
				sess.SetAttribute(name, &boundValue{Name: name, journal: j})
				_ = n.manager.Complete(bg, sess)
			}
		}()
	}
	wg.Wait()

	assert.False(t, sess.IsValid())

	unbinds := map[string]int{}
	for _, e := range j.all() {
		if name, ok := strings.CutPrefix(e, "unbound:"); ok {
			unbinds[name]++
		}
	}
	for i := range values {
		name := fmt.Sprintf("v%d", i)
		assert.Equal(t, 1, unbinds[name+":"+name], "value %s", name)
	}
	for name, count := range unbinds {
		assert.Equal(t, 1, count, "value %s unbound more than once", name)
	}
}

type activationProbe struct {
	Label     string
	activated []*session.Session
}

func (p *activationProbe) SessionDidActivate(s *session.Session) {
	p.activated = append(p.activated, s)
}

func TestSession_RestoreActivatesAttributes(t *testing.T) {
	t.Parallel()

	probe := &activationProbe{Label: "p"}
	sess := session.NewSession("id-1", time.Minute, epoch)
	sess.SetAttribute("probe", probe)
	require.False(t, sess.Restored())

	host := &session.Host{NodeID: "node-a"}
	sess.Restore(session.NewMemoryCache(), host)

	assert.True(t, sess.Restored())
	assert.Same(t, host, sess.Host())
	require.Len(t, probe.activated, 1)
	assert.Same(t, sess, probe.activated[0])
}

func TestSession_Equal(t *testing.T) {
	t.Parallel()

	a := session.NewSession("id-1", time.Minute, epoch)
	b := session.NewSession("id-1", time.Hour, epoch)
	c := session.NewSession("id-1", time.Minute, epoch.Add(time.Second))
	d := session.NewSession("id-2", time.Minute, epoch)

	b.Restore(session.NewMemoryCache(), &session.Host{NodeID: "x"})

	assert.True(t, a.Equal(b), "node-local state and mutable fields do not matter")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
	assert.False(t, a.Equal(nil))
}

func TestSession_SetMaxInactiveInterval(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)
	sess.SetMaxInactiveInterval(time.Hour)

	assert.Equal(t, time.Hour, sess.MaxInactiveInterval())
	assert.True(t, sess.IsModified())
}

func TestSession_LegacyAccessors(t *testing.T) {
	t.Parallel()

	sess := session.NewSession("id-1", time.Minute, epoch)

	_, err := sess.GetValue("a")
	assert.ErrorIs(t, err, session.ErrNotSupported)
	assert.ErrorIs(t, sess.PutValue("a", 1), session.ErrNotSupported)
	assert.ErrorIs(t, sess.RemoveValue("a"), session.ErrNotSupported)
	_, err = sess.ValueNames()
	assert.ErrorIs(t, err, session.ErrNotSupported)
	_, err = sess.SessionContext()
	assert.ErrorIs(t, err, session.ErrNotSupported)

	// the legacy surface never mutates
	assert.Empty(t, sess.AttributeNames())
}

func TestIsValid_NilSession(t *testing.T) {
	t.Parallel()

	var sess *session.Session
	assert.False(t, sess.IsValid())
}
