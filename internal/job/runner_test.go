package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curation"
	"github.com/inbix/curator/internal/curator"
	"github.com/inbix/curator/internal/metrics"
)

func init() {
	metrics.Init()
}

type fakeCollector struct {
	items []curator.Item
	block chan struct{}
}

func (c *fakeCollector) Run(_ context.Context) []curator.Item {
	if c.block != nil {
		<-c.block
	}
	return c.items
}

type fakeStore struct {
	mu      sync.Mutex
	saveErr error
	saved   []curator.Snapshot
}

func (s *fakeStore) Save(_ context.Context, snap curator.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, snap)
	return nil
}

func (s *fakeStore) Load(_ context.Context) (curator.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.saved) == 0 {
		return curator.Snapshot{Items: []curator.Item{}}, nil
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *fakeStore) savedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

type fakePublisher struct {
	mu     sync.Mutex
	ok     bool
	called int
}

func (p *fakePublisher) Publish(_ context.Context, _ []curator.Item) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.called++
	return p.ok
}

type fakeClock struct{ now time.Time }

func (c fakeClock) Now() time.Time { return c.now }

func newTestRunner(collector Collector, store curator.SnapshotStore, publisher curator.Publisher) *Runner {
	engine := curation.New(curation.Config{MaxItems: 30}, zap.NewNop())
	return New(collector, engine, store, publisher, fakeClock{now: time.Unix(100, 0)}, time.Minute, zap.NewNop())
}

func waitForTerminal(t *testing.T, r *Runner) curator.JobStatus {
	t.Helper()
	require.Eventually(t, func() bool {
		state := r.Status().State
		return state == curator.StateDone || state == curator.StateError
	}, 5*time.Second, 10*time.Millisecond)
	return r.Status()
}

func TestRunner_SuccessFlow(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	publisher := &fakePublisher{ok: true}
	runner := newTestRunner(&fakeCollector{items: []curator.Item{
		{Title: "a story worth keeping around here", URL: "https://a.com/1", Source: curator.SourceForum},
	}}, store, publisher)

	require.Equal(t, curator.StateIdle, runner.Status().State)
	require.True(t, runner.Trigger())

	status := waitForTerminal(t, runner)
	require.Equal(t, curator.StateDone, status.State)
	require.Contains(t, status.Detail, "1 itens curados")
	require.Equal(t, 1, store.savedCount())
	require.Equal(t, 1, publisher.called)
}

func TestRunner_SingleFlight(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	store := &fakeStore{}
	runner := newTestRunner(&fakeCollector{block: block}, store, nil)

	require.True(t, runner.Trigger())
	require.Equal(t, curator.StateRunning, runner.Status().State)
	// second trigger while in flight is refused
	require.False(t, runner.Trigger())

	close(block)
	waitForTerminal(t, runner)
	require.Equal(t, 1, store.savedCount())

	// a finished runner accepts a new trigger
	require.True(t, runner.Trigger())
	waitForTerminal(t, runner)
}

func TestRunner_SnapshotFailureIsError(t *testing.T) {
	t.Parallel()

	store := &fakeStore{saveErr: errors.New("disk full")}
	publisher := &fakePublisher{ok: true}
	runner := newTestRunner(&fakeCollector{}, store, publisher)

	require.True(t, runner.Trigger())
	status := waitForTerminal(t, runner)
	require.Equal(t, curator.StateError, status.State)
	require.Contains(t, status.Detail, "disk full")
	// publish never happens when persistence failed
	require.Equal(t, 0, publisher.called)
}

func TestRunner_PublishFailureStillDone(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	publisher := &fakePublisher{ok: false}
	runner := newTestRunner(&fakeCollector{items: []curator.Item{
		{Title: "another story worth keeping around here", URL: "https://a.com/2", Source: curator.SourceVideo},
	}}, store, publisher)

	require.True(t, runner.Trigger())
	status := waitForTerminal(t, runner)
	require.Equal(t, curator.StateDone, status.State)
	require.True(t, strings.Contains(status.Detail, "publicação falhou"))
	require.Equal(t, 1, store.savedCount())
}

func TestRunner_NilPublisherSkipsPublishing(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := newTestRunner(&fakeCollector{}, store, nil)

	require.True(t, runner.Trigger())
	status := waitForTerminal(t, runner)
	require.Equal(t, curator.StateDone, status.State)
	require.Equal(t, 1, store.savedCount())
}

func TestRunner_SnapshotContents(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	runner := newTestRunner(&fakeCollector{items: []curator.Item{
		{Title: "one story title that is long enough", URL: "https://a.com/1", Source: curator.SourceForum},
		{Title: "second story title that is long enough", URL: "https://a.com/2", Source: curator.SourceVideo},
	}}, store, nil)

	require.True(t, runner.Trigger())
	waitForTerminal(t, runner)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, time.Unix(100, 0), snap.UpdatedAt)
	require.Equal(t, 2, snap.Total)
	require.Len(t, snap.Items, 2)
}
