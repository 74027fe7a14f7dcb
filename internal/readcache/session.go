// Package readcache keeps one viewer eventually consistent with the shared
// backend. A Session fronts the read views (job feed, my jobs, my gigs,
// profile, unread count) with a keyed stale-while-revalidate cache:
//
//   - a cached value is returned immediately; a background refetch starts
//     when the value is older than the family's interval or was explicitly
//     invalidated
//   - concurrent accessors of one key share a single in-flight fetch
//   - a failed refetch keeps the previous value and surfaces the error on
//     the Snapshot; it never evicts
//   - Focus schedules refetches for the focus-sensitive families
//   - Invalidate marks keys (or "prefix:*" families) stale; results of
//     fetches that started before the invalidation are discarded
//
// Sessions subscribe to the invalidation bus, so a mutation in any process
// reaches every viewer on its next access or watch tick.
package readcache

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"campusgig/internal/bus"
)

// Reader loads the current backend value for a cache key.
type Reader interface {
	Read(ctx context.Context, key string) (any, error)
}

// Snapshot is what an access observes: the last known value plus freshness
// flags. Err carries the most recent refetch failure, if any; Value stays
// populated from the last success regardless.
type Snapshot struct {
	Value     any
	FetchedAt time.Time
	Stale     bool
	Err       error
}

// policy is a family's refresh behaviour. interval zero means no timed
// revalidation; focus marks the family for refetch on regained focus.
type policy struct {
	interval time.Duration
	focus    bool
}

var defaultPolicies = map[Family]policy{
	FamilyFeed:    {interval: 30 * time.Second, focus: true},
	FamilyMyJobs:  {focus: true},
	FamilyMyGigs:  {focus: true},
	FamilyProfile: {},
	FamilyUnread:  {interval: 15 * time.Second},
}

// Session is one viewer's cache. Construct once per consuming context and
// share it across that context's reads.
type Session struct {
	reader       Reader
	log          *zap.Logger
	fetchTimeout time.Duration
	policies     map[Family]policy

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	key string

	value     any
	hasValue  bool
	fetchedAt time.Time
	stale     bool
	lastErr   error

	// gen is bumped by Invalidate; an in-flight fetch started under an older
	// generation is discarded when it lands.
	gen      uint64
	inflight *inflight

	watchers    map[int]chan Snapshot
	nextWatcher int
	tickerStop  chan struct{}
}

type inflight struct {
	done       chan struct{}
	gen        uint64
	superseded bool
}

// Option adjusts a Session.
type Option func(*Session)

// WithInterval overrides a family's revalidation interval. Zero disables the
// timer for that family.
func WithInterval(f Family, d time.Duration) Option {
	return func(s *Session) {
		p := s.policies[f]
		p.interval = d
		s.policies[f] = p
	}
}

// WithFetchTimeout bounds each background fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Session) { s.fetchTimeout = d }
}

// NewSession builds an empty cache over reader.
func NewSession(reader Reader, log *zap.Logger, opts ...Option) *Session {
	s := &Session{
		reader:       reader,
		log:          log,
		fetchTimeout: 10 * time.Second,
		policies:     make(map[Family]policy, len(defaultPolicies)),
		entries:      make(map[string]*entry),
	}
	for f, p := range defaultPolicies {
		s.policies[f] = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachBus subscribes the session to cross-process invalidations until ctx
// is cancelled.
func (s *Session) AttachBus(ctx context.Context, b bus.Bus) error {
	return b.Subscribe(ctx, func(key string) { s.Invalidate(key) })
}

// Get returns the current snapshot for key. A cached value is returned
// immediately, with a background refetch scheduled when it is due; the first
// access with nothing cached blocks on the shared fetch. The returned error
// is only ever ctx's.
func (s *Session) Get(ctx context.Context, key string) (Snapshot, error) {
	for {
		s.mu.Lock()
		e := s.entryLocked(key)
		if e.hasValue {
			if (e.stale || s.intervalElapsedLocked(e)) && e.inflight == nil {
				s.startFetchLocked(e)
			}
			snap := s.snapshotLocked(e)
			s.mu.Unlock()
			return snap, nil
		}
		inf := e.inflight
		if inf == nil {
			inf = s.startFetchLocked(e)
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			// Only the waiter gives up; the shared fetch keeps running.
			return Snapshot{}, ctx.Err()
		case <-inf.done:
		}

		s.mu.Lock()
		if inf.superseded {
			// Discarded result; go again under the current generation.
			s.mu.Unlock()
			continue
		}
		snap := s.snapshotLocked(e)
		s.mu.Unlock()
		return snap, nil
	}
}

// Invalidate marks keys stale so the next access refetches. A key ending in
// "*" invalidates every cached key with that prefix. In-flight fetches for
// the keys are superseded: their results will be discarded.
func (s *Session) Invalidate(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if strings.HasSuffix(k, "*") {
			prefix := strings.TrimSuffix(k, "*")
			for _, e := range s.entries {
				if strings.HasPrefix(e.key, prefix) {
					s.invalidateLocked(e)
				}
			}
			continue
		}
		if e, ok := s.entries[k]; ok {
			s.invalidateLocked(e)
		}
	}
}

// Focus schedules a refetch for every cached focus-sensitive key. Call it
// when the consuming context returns to the foreground.
func (s *Session) Focus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if s.policies[KeyFamily(e.key)].focus && e.inflight == nil {
			s.startFetchLocked(e)
		}
	}
}

// Watch pushes a snapshot on every refresh of key until ctx is cancelled.
// Families with an interval are revalidated on a timer while at least one
// watcher is registered. The channel carries the current value immediately
// when one is cached.
func (s *Session) Watch(ctx context.Context, key string) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	e := s.entryLocked(key)
	id := e.nextWatcher
	e.nextWatcher++
	if e.watchers == nil {
		e.watchers = make(map[int]chan Snapshot)
	}
	e.watchers[id] = ch

	if e.hasValue {
		ch <- s.snapshotLocked(e)
	} else if e.inflight == nil {
		s.startFetchLocked(e)
	}
	if p := s.policies[KeyFamily(key)]; p.interval > 0 && e.tickerStop == nil {
		stop := make(chan struct{})
		e.tickerStop = stop
		go s.runTicker(key, p.interval, stop)
	}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(e.watchers, id)
		if len(e.watchers) == 0 && e.tickerStop != nil {
			close(e.tickerStop)
			e.tickerStop = nil
		}
		s.mu.Unlock()
		close(ch)
	}()
	return ch
}

// ─── Internals ───────────────────────────────────────────────────────────────

func (s *Session) entryLocked(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{key: key}
		s.entries[key] = e
	}
	return e
}

func (s *Session) intervalElapsedLocked(e *entry) bool {
	iv := s.policies[KeyFamily(e.key)].interval
	return iv > 0 && time.Since(e.fetchedAt) >= iv
}

func (s *Session) snapshotLocked(e *entry) Snapshot {
	return Snapshot{
		Value:     e.value,
		FetchedAt: e.fetchedAt,
		Stale:     e.stale || s.intervalElapsedLocked(e),
		Err:       e.lastErr,
	}
}

func (s *Session) invalidateLocked(e *entry) {
	e.stale = true
	e.gen++
	// Watchers expect a push; accessors refetch lazily.
	if len(e.watchers) > 0 && e.inflight == nil {
		s.startFetchLocked(e)
	}
}

// startFetchLocked launches the single background fetch for e. The fetch
// runs under its own timeout, not any caller's context: an abandoned render
// must not cancel a refetch other accessors are sharing.
func (s *Session) startFetchLocked(e *entry) *inflight {
	inf := &inflight{done: make(chan struct{}), gen: e.gen}
	e.inflight = inf
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
		defer cancel()
		v, err := s.reader.Read(ctx, e.key)
		s.complete(e, inf, v, err)
	}()
	return inf
}

func (s *Session) complete(e *entry, inf *inflight, v any, err error) {
	s.mu.Lock()
	if e.inflight == inf {
		e.inflight = nil
	}
	if inf.gen != e.gen {
		// The key was invalidated after this fetch started: the result may
		// predate the mutation, so it is discarded, never merged.
		inf.superseded = true
		if len(e.watchers) > 0 && e.inflight == nil {
			s.startFetchLocked(e)
		}
	} else if err != nil {
		e.lastErr = err
		if s.log != nil {
			s.log.Warn("refetch failed", zap.String("key", e.key), zap.Error(err))
		}
		s.notifyWatchersLocked(e)
	} else {
		e.value = v
		e.hasValue = true
		e.fetchedAt = time.Now()
		e.stale = false
		e.lastErr = nil
		s.notifyWatchersLocked(e)
	}
	s.mu.Unlock()
	close(inf.done)
}

// notifyWatchersLocked pushes the current snapshot without ever blocking:
// a slow watcher keeps only the most recent snapshot.
func (s *Session) notifyWatchersLocked(e *entry) {
	if len(e.watchers) == 0 {
		return
	}
	snap := s.snapshotLocked(e)
	for _, ch := range e.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Session) runTicker(key string, interval time.Duration, stop chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			s.mu.Lock()
			if e, ok := s.entries[key]; ok && e.inflight == nil {
				s.startFetchLocked(e)
			}
			s.mu.Unlock()
		}
	}
}
