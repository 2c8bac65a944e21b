package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buzzline-lab/buzztrack/internal/core/storage"
	"github.com/buzzline-lab/buzztrack/internal/core/storage/memory"
	"github.com/buzzline-lab/buzztrack/internal/event"
	"github.com/buzzline-lab/buzztrack/internal/feed"
)

// pullResult is one scripted outcome of Feed.Next.
type pullResult struct {
	evt event.KeywordEvent
	err error
}

// scriptedFeed plays back a fixed sequence, then reports end-of-stream.
type scriptedFeed struct {
	results []pullResult
	pos     int
}

func (f *scriptedFeed) Next(ctx context.Context) (event.KeywordEvent, error) {
	if err := ctx.Err(); err != nil {
		return event.KeywordEvent{}, err
	}
	if f.pos >= len(f.results) {
		return event.KeywordEvent{}, feed.ErrEndOfStream
	}
	res := f.results[f.pos]
	f.pos++
	return res.evt, res.err
}

func (f *scriptedFeed) Close() error { return nil }

// blockingFeed waits for cancellation, like a reader on an idle topic.
type blockingFeed struct{ started chan struct{} }

func (f *blockingFeed) Next(ctx context.Context) (event.KeywordEvent, error) {
	select {
	case f.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return event.KeywordEvent{}, ctx.Err()
}

func (f *blockingFeed) Close() error { return nil }

// recordingMirror captures every full-snapshot write.
type recordingMirror struct {
	mu       sync.Mutex
	resets   int
	writes   []map[string]int64
	resetErr error
	writeErr error
}

func (m *recordingMirror) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resetErr != nil {
		return m.resetErr
	}
	m.resets++
	m.writes = nil
	return nil
}

func (m *recordingMirror) WriteFull(counts map[string]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	copied := make(map[string]int64, len(counts))
	for k, v := range counts {
		copied[k] = v
	}
	m.writes = append(m.writes, copied)
	return nil
}

func (m *recordingMirror) lastWrite() map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.writes) == 0 {
		return nil
	}
	return m.writes[len(m.writes)-1]
}

// failingStore wraps a real store and fails Increment for chosen keywords.
type failingStore struct {
	storage.CounterStore
	failKeyword string
}

func (s *failingStore) Increment(ctx context.Context, keyword string) error {
	if keyword == s.failKeyword {
		return errors.New("database is locked")
	}
	return s.CounterStore.Increment(ctx, keyword)
}

func events(keywords ...string) []pullResult {
	results := make([]pullResult, len(keywords))
	for i, k := range keywords {
		results[i] = pullResult{evt: event.KeywordEvent{Keyword: k}}
	}
	return results
}

func TestConsumer_CountsEventSequence(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: events("python", "python", "rust")}

	c := New(store, mirror, f, "run-1")
	require.NoError(t, c.Run(context.Background()))
	require.Equal(t, StateStopped, c.State())

	counts, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"python": 2, "rust": 1}, counts)

	// Quiescent-state equality: the last written snapshot is the mapping.
	require.Equal(t, counts, mirror.lastWrite())
}

func TestConsumer_MirrorWrittenAfterEveryEvent(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: events("python", "python", "rust")}

	c := New(store, mirror, f, "run-1")
	require.NoError(t, c.Run(context.Background()))

	require.Equal(t, []map[string]int64{
		{"python": 1},
		{"python": 2},
		{"python": 2, "rust": 1},
	}, mirror.writes)
}

func TestConsumer_SkipsUndecodableEvents(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: []pullResult{
		{evt: event.KeywordEvent{Keyword: "python"}},
		{err: fmt.Errorf("decoding message at offset 5: %w", event.ErrMissingKeyword)},
		{err: fmt.Errorf("decoding message at offset 6: %w", event.ErrMalformedPayload)},
		{evt: event.KeywordEvent{Keyword: "python"}},
	}}

	c := New(store, mirror, f, "run-1")
	require.NoError(t, c.Run(context.Background()))

	counts, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"python": 2}, counts)
	require.Len(t, mirror.writes, 2)
}

func TestConsumer_StoreFailureDropsEventAndContinues(t *testing.T) {
	store := &failingStore{CounterStore: memory.NewCounterStore(), failKeyword: "rust"}
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: events("python", "rust", "python")}

	c := New(store, mirror, f, "run-1")
	require.NoError(t, c.Run(context.Background()))

	counts, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"python": 2}, counts)

	// The dropped event produced no snapshot write.
	require.Len(t, mirror.writes, 2)
}

func TestConsumer_MirrorFailureLeavesStoreAhead(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{writeErr: errors.New("disk full")}
	f := &scriptedFeed{results: events("python", "python")}

	c := New(store, mirror, f, "run-1")
	require.NoError(t, c.Run(context.Background()))

	// Durable store advanced despite every mirror write failing.
	count, err := store.Get(context.Background(), "python")
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.Empty(t, mirror.writes)
}

func TestConsumer_ResetPrecedesConsumption(t *testing.T) {
	store := memory.NewCounterStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Increment(context.Background(), "python"))
	}

	mirror := &recordingMirror{}
	c := New(store, mirror, &scriptedFeed{}, "run-2")
	require.NoError(t, c.Run(context.Background()))

	// Fresh epoch: prior run's counts are gone even with no new events.
	counts, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, counts)
	require.Equal(t, 1, mirror.resets)
}

func TestConsumer_StoreResetFailureIsFatal(t *testing.T) {
	store := &resetFailingStore{}
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: events("python")}

	c := New(store, mirror, f, "run-1")
	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
	require.Equal(t, StateStopped, c.State())

	// The loop was never entered.
	require.Zero(t, f.pos)
	require.Zero(t, mirror.resets)
}

func TestConsumer_MirrorResetFailureIsFatal(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{resetErr: errors.New("permission denied")}
	f := &scriptedFeed{results: events("python")}

	c := New(store, mirror, f, "run-1")
	err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
	require.Zero(t, f.pos)
}

func TestConsumer_FeedUnavailableTerminatesRun(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{}
	f := &scriptedFeed{results: []pullResult{
		{evt: event.KeywordEvent{Keyword: "python"}},
		{err: fmt.Errorf("%w: broken pipe", feed.ErrUnavailable)},
	}}

	c := New(store, mirror, f, "run-1")
	err := c.Run(context.Background())
	require.ErrorIs(t, err, feed.ErrUnavailable)
	require.Equal(t, StateStopped, c.State())

	// Work applied before the outage is kept.
	count, getErr := store.Get(context.Background(), "python")
	require.NoError(t, getErr)
	require.Equal(t, int64(1), count)
}

func TestConsumer_CancellationStopsBetweenEvents(t *testing.T) {
	store := memory.NewCounterStore()
	mirror := &recordingMirror{}
	f := &blockingFeed{started: make(chan struct{}, 1)}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	c := New(store, mirror, f, "run-1")
	go func() { done <- c.Run(ctx) }()

	<-f.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop after cancellation")
	}
	require.Equal(t, StateStopped, c.State())
}

// resetFailingStore fails its reset; nothing else should ever be called.
type resetFailingStore struct{}

func (s *resetFailingStore) Reset(ctx context.Context) error {
	return errors.New("table is locked")
}

func (s *resetFailingStore) Increment(ctx context.Context, keyword string) error {
	return errors.New("unexpected call")
}

func (s *resetFailingStore) Get(ctx context.Context, keyword string) (int64, error) {
	return 0, errors.New("unexpected call")
}

func (s *resetFailingStore) GetAll(ctx context.Context) (map[string]int64, error) {
	return nil, errors.New("unexpected call")
}
