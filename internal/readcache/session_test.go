package readcache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campusgig/internal/bus"
	"campusgig/internal/errors"
	"campusgig/internal/readcache"
)

type readerFunc func(ctx context.Context, key string) (any, error)

func (f readerFunc) Read(ctx context.Context, key string) (any, error) { return f(ctx, key) }

// countingReader serves values[key] and counts fetches per key. When gate is
// non-nil every Read blocks until the gate closes.
type countingReader struct {
	mu     sync.Mutex
	values map[string]any
	errs   map[string]error
	calls  map[string]int
	gate   chan struct{}
}

func newCountingReader() *countingReader {
	return &countingReader{
		values: make(map[string]any),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

// Read captures the value when the fetch starts, before blocking on the
// gate, so a delayed fetch genuinely returns pre-mutation data.
func (r *countingReader) Read(ctx context.Context, key string) (any, error) {
	r.mu.Lock()
	r.calls[key]++
	gate := r.gate
	err := r.errs[key]
	val := r.values[key]
	r.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (r *countingReader) set(key string, v any) { r.mu.Lock(); r.values[key] = v; r.mu.Unlock() }

func (r *countingReader) fail(key string, err error) { r.mu.Lock(); r.errs[key] = err; r.mu.Unlock() }

func (r *countingReader) open(gate chan struct{}) { r.mu.Lock(); r.gate = gate; r.mu.Unlock() }

func (r *countingReader) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func TestGetBlocksOnceThenServesFromCache(t *testing.T) {
	r := newCountingReader()
	r.set(readcache.KeyFeed, "v1")
	s := readcache.NewSession(r, zap.NewNop())

	snap, err := s.Get(context.Background(), readcache.KeyFeed)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Value)
	assert.False(t, snap.Stale)
	assert.NoError(t, snap.Err)

	// Fresh value, no interval elapsed: no second fetch.
	r.set(readcache.KeyFeed, "v2")
	snap, err = s.Get(context.Background(), readcache.KeyFeed)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Value)
	assert.Equal(t, 1, r.count(readcache.KeyFeed))
}

func TestConcurrentAccessSharesOneFetch(t *testing.T) {
	r := newCountingReader()
	r.set(readcache.KeyFeed, "shared")
	gate := make(chan struct{})
	r.open(gate)
	s := readcache.NewSession(r, zap.NewNop())

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]readcache.Snapshot, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := s.Get(context.Background(), readcache.KeyFeed)
			assert.NoError(t, err)
			results[i] = snap
		}(i)
	}

	// Let the waiters pile up on the single in-flight fetch.
	require.Eventually(t, func() bool { return r.count(readcache.KeyFeed) == 1 },
		time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, 1, r.count(readcache.KeyFeed), "all accessors must share one fetch")
	for _, snap := range results {
		assert.Equal(t, "shared", snap.Value)
	}
}

func TestIntervalRevalidation(t *testing.T) {
	r := newCountingReader()
	r.set(readcache.KeyFeed, "v1")
	s := readcache.NewSession(r, zap.NewNop(),
		readcache.WithInterval(readcache.FamilyFeed, 20*time.Millisecond))

	snap, err := s.Get(context.Background(), readcache.KeyFeed)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Value)

	r.set(readcache.KeyFeed, "v2")
	time.Sleep(30 * time.Millisecond)

	// Stale value served immediately; refetch happens in the background.
	snap, err = s.Get(context.Background(), readcache.KeyFeed)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Value)
	assert.True(t, snap.Stale)

	require.Eventually(t, func() bool {
		snap, err := s.Get(context.Background(), readcache.KeyFeed)
		require.NoError(t, err)
		return snap.Value == "v2"
	}, time.Second, time.Millisecond)
}

func TestFailedRefetchKeepsCachedValue(t *testing.T) {
	key := readcache.ProfileKey("u1")
	r := newCountingReader()
	r.set(key, "cached")
	s := readcache.NewSession(r, zap.NewNop())

	snap, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "cached", snap.Value)

	r.fail(key, errors.New("backend unreachable"))
	s.Invalidate(key)

	// The failed refetch must not evict: old value plus error flag.
	require.Eventually(t, func() bool {
		snap, err := s.Get(context.Background(), key)
		require.NoError(t, err)
		return snap.Err != nil
	}, time.Second, time.Millisecond)

	snap, err = s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "cached", snap.Value)
	assert.True(t, snap.Stale)
}

func TestInvalidateFamily(t *testing.T) {
	r := newCountingReader()
	r.set(readcache.MyJobsKey("u1"), "a")
	r.set(readcache.MyJobsKey("u2"), "b")
	r.set(readcache.KeyFeed, "feed")
	s := readcache.NewSession(r, zap.NewNop())

	ctx := context.Background()
	for _, k := range []string{readcache.MyJobsKey("u1"), readcache.MyJobsKey("u2"), readcache.KeyFeed} {
		_, err := s.Get(ctx, k)
		require.NoError(t, err)
	}

	s.Invalidate("jobs:my:*")

	snap, err := s.Get(ctx, readcache.MyJobsKey("u1"))
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	snap, err = s.Get(ctx, readcache.MyJobsKey("u2"))
	require.NoError(t, err)
	assert.True(t, snap.Stale)
	snap, err = s.Get(ctx, readcache.KeyFeed)
	require.NoError(t, err)
	assert.False(t, snap.Stale, "other families stay fresh")
}

func TestSupersededFetchIsDiscarded(t *testing.T) {
	key := readcache.MyJobsKey("u1")
	r := newCountingReader()
	r.set(key, "v1")
	s := readcache.NewSession(r, zap.NewNop())

	ctx := context.Background()
	snap, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Value)

	// Start a refetch that will return a pre-mutation value, then invalidate
	// again while it is in flight.
	gate := make(chan struct{})
	r.open(gate)
	r.set(key, "pre-mutation")
	s.Invalidate(key)
	_, err = s.Get(ctx, key) // schedules the gated refetch
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.count(key) == 2 }, time.Second, time.Millisecond)

	s.Invalidate(key)
	r.open(nil)
	r.set(key, "post-mutation")
	close(gate)

	// The superseded result never lands; the next refetch sees the new value.
	require.Eventually(t, func() bool {
		snap, err := s.Get(ctx, key)
		require.NoError(t, err)
		return snap.Value == "post-mutation"
	}, time.Second, time.Millisecond)

	snap, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.NotEqual(t, "pre-mutation", snap.Value)
}

func TestFocusRefetchesFocusSensitiveKeys(t *testing.T) {
	r := newCountingReader()
	r.set(readcache.KeyFeed, "feed")
	r.set(readcache.MyGigsKey("u1"), "gigs")
	r.set(readcache.ProfileKey("u1"), "profile")
	s := readcache.NewSession(r, zap.NewNop())

	ctx := context.Background()
	for _, k := range []string{readcache.KeyFeed, readcache.MyGigsKey("u1"), readcache.ProfileKey("u1")} {
		_, err := s.Get(ctx, k)
		require.NoError(t, err)
	}

	s.Focus()

	require.Eventually(t, func() bool {
		return r.count(readcache.KeyFeed) == 2 && r.count(readcache.MyGigsKey("u1")) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, r.count(readcache.ProfileKey("u1")), "profile revalidates only on invalidation")
}

func TestWatchPushesRefreshes(t *testing.T) {
	key := readcache.UnreadKey("u1")
	var (
		mu sync.Mutex
		n  int
	)
	reader := readerFunc(func(ctx context.Context, k string) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return n, nil
	})
	s := readcache.NewSession(reader, zap.NewNop(),
		readcache.WithInterval(readcache.FamilyUnread, 15*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Watch(ctx, key)

	seen := make(map[int]bool)
	deadline := time.After(time.Second)
	for len(seen) < 3 {
		select {
		case snap := <-ch:
			if v, ok := snap.Value.(int); ok {
				seen[v] = true
			}
		case <-deadline:
			t.Fatalf("saw only %d distinct snapshots", len(seen))
		}
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, time.Millisecond, "channel closes after the watcher unsubscribes")
}

func TestBusInvalidationReachesSession(t *testing.T) {
	key := readcache.ProfileKey("u1")
	r := newCountingReader()
	r.set(key, "v1")
	s := readcache.NewSession(r, zap.NewNop())

	b := bus.NewLocal()
	ctx := context.Background()
	require.NoError(t, s.AttachBus(ctx, b))

	_, err := s.Get(ctx, key)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, key))

	snap, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, snap.Stale)
}

func TestSplitKey(t *testing.T) {
	cases := []struct {
		key string
		fam readcache.Family
		arg string
	}{
		{readcache.KeyFeed, readcache.FamilyFeed, ""},
		{readcache.MyJobsKey("u1"), readcache.FamilyMyJobs, "u1"},
		{readcache.MyGigsKey("u2"), readcache.FamilyMyGigs, "u2"},
		{readcache.ProfileKey("u3"), readcache.FamilyProfile, "u3"},
		{readcache.UnreadKey("u4"), readcache.FamilyUnread, "u4"},
		{"bogus:key", readcache.FamilyUnknown, ""},
	}
	for _, tc := range cases {
		fam, arg := readcache.SplitKey(tc.key)
		assert.Equal(t, tc.fam, fam, tc.key)
		assert.Equal(t, tc.arg, arg, tc.key)
	}
}
