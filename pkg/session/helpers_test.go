package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/clustersession/pkg/session"
)

var epoch = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func init() {
	session.RegisterType(&boundValue{})
}

// boundValue records binding callbacks into a shared journal
type boundValue struct {
	Name    string
	journal *journal
}

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	j.entries = append(j.entries, s)
	j.mu.Unlock()
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (v *boundValue) ValueBound(e session.BindingEvent) {
	if v.journal != nil {
		v.journal.add("bound:" + e.Name + ":" + v.Name)
	}
}

func (v *boundValue) ValueUnbound(e session.BindingEvent) {
	if v.journal != nil {
		v.journal.add("unbound:" + e.Name + ":" + v.Name)
	}
}

// recordingListener forwards lifecycle callbacks to channels
type recordingListener struct {
	created   chan *session.Session
	destroyed chan *session.Session
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		created:   make(chan *session.Session, 64),
		destroyed: make(chan *session.Session, 64),
	}
}

func (l *recordingListener) SessionCreated(s *session.Session)   { l.created <- s }
func (l *recordingListener) SessionDestroyed(s *session.Session) { l.destroyed <- s }

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func assertQuiet[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

type node struct {
	cache    *session.MemoryCache
	manager  *session.Manager
	listener *recordingListener
}

// newCluster starts one manager per host name on a shared memory cluster
func newCluster(t *testing.T, clock clockwork.Clock, hosts []string, opts ...session.Option) []node {
	t.Helper()

	cluster := session.NewMemoryCluster(session.WithMemoryClock(clock))
	t.Cleanup(func() { _ = cluster.Close() })

	nodes := make([]node, 0, len(hosts))
	for _, h := range hosts {
		c := cluster.Join()
		l := newRecordingListener()
		nodeOpts := append([]session.Option{
			session.WithClock(clock),
			session.WithHost(&session.Host{NodeID: h, ContextPath: "/app"}),
			session.WithListeners(l),
		}, opts...)
		m, err := session.New(c, nodeOpts...)
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Close() })
		nodes = append(nodes, node{cache: c, manager: m, listener: l})
	}
	return nodes
}

func newNode(t *testing.T, clock clockwork.Clock, opts ...session.Option) node {
	t.Helper()
	return newCluster(t, clock, []string{"node-a"}, opts...)[0]
}

var bg = context.Background()
