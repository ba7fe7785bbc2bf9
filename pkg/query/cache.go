// Package query caches server state keyed by query Key.
//
// A Cache coalesces concurrent fetches of the same key into one call, keeps
// the last good data when a refetch fails, refetches mounted queries
// (subscriptions) when their key is invalidated, and polls subscriptions
// whose refetch interval is positive.
package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/internal/metrics"
)

var (
	// ErrDisabled is returned by Fetch for a query whose Enabled option is false.
	ErrDisabled = errors.New("query: disabled")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("query: cache closed")
)

// Status is the state of a cache entry.
type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc loads the data for a key.
type FetchFunc func(ctx context.Context) (any, error)

// Result is a snapshot of an entry.
type Result struct {
	// Data is the most recent successful value, kept across failed refetches.
	Data any
	// Err is the error from the most recent fetch, nil if it succeeded.
	Err       error
	Status    Status
	UpdatedAt time.Time
	// Stale is true when Data is not the result of a fresh, successful fetch.
	Stale bool
}

// HasData reports whether Data holds a fetched value.
func (r Result) HasData() bool {
	return !r.UpdatedAt.IsZero()
}

// Config holds cache configuration.
type Config struct {
	StaleTime  time.Duration // default age before data is stale; 0 = immediately
	GCTime     time.Duration // unmounted entries idle this long are dropped
	MaxEntries int           // 0 = unbounded
	Now        func() time.Time
}

// DefaultGCTime is used when Config.GCTime is zero.
const DefaultGCTime = 5 * time.Minute

// Cache is the query cache.
type Cache struct {
	cfg    Config
	group  singleflight.Group
	poller *Poller
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger

	mu        sync.Mutex
	entries   map[string]*entry
	nextSubID uint64
	closed    bool
	wg        sync.WaitGroup
}

type entry struct {
	id         string
	key        Key
	data       any
	hasData    bool
	err        error
	updatedAt  time.Time
	lastAccess time.Time
	staleTime  time.Duration

	fetching    bool
	invalidated bool // marked stale by Invalidate
	dirty       bool // invalidated while a fetch was in flight
	waiters     int
	subs        map[uint64]*Subscription
}

// New creates a cache.
func New(cfg Config) *Cache {
	if cfg.GCTime <= 0 {
		cfg.GCTime = DefaultGCTime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		cfg:     cfg,
		poller:  NewPoller(),
		ctx:     ctx,
		cancel:  cancel,
		log:     logging.Named("query"),
		entries: make(map[string]*entry),
	}
}

// Close cancels in-flight fetches and polling and waits for background work
// to finish. The cache is unusable afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.poller.Stop()
	c.wg.Wait()
}

// Fetch returns the cached data for key when it is fresh, otherwise calls fn.
// Concurrent calls for the same key share one call to fn. If ctx ends first,
// Fetch returns ctx.Err() and the shared fetch still completes and populates
// the cache.
func (c *Cache) Fetch(ctx context.Context, key Key, fn FetchFunc, opts ...Option) (Result, error) {
	o := c.buildOptions(opts)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	now := c.cfg.Now()
	e := c.entryLocked(key, now)
	e.lastAccess = now
	e.staleTime = o.staleTime
	if !o.enabled {
		r := e.result(now)
		c.mu.Unlock()
		return r, ErrDisabled
	}
	if e.freshAt(now) {
		r := e.result(now)
		c.mu.Unlock()
		metrics.RecordCacheHit()
		return r, nil
	}
	joined := e.fetching
	e.waiters++
	c.wg.Add(1)
	c.mu.Unlock()

	metrics.RecordCacheMiss()
	if joined {
		metrics.RecordCoalesced()
	}

	ch := c.group.DoChan(e.id, func() (any, error) {
		return c.run(ctx, e, fn)
	})
	select {
	case res := <-ch:
		return c.release(e), res.Err
	case <-ctx.Done():
		go func() {
			<-ch
			c.release(e)
		}()
		c.mu.Lock()
		r := e.result(c.cfg.Now())
		c.mu.Unlock()
		return r, ctx.Err()
	}
}

func (c *Cache) release(e *entry) Result {
	c.mu.Lock()
	e.waiters--
	r := e.result(c.cfg.Now())
	c.mu.Unlock()
	c.wg.Done()
	return r
}

// run is the body of a single flight. It stores the outcome, delivers it to
// subscribers and reschedules polling.
func (c *Cache) run(ctx context.Context, e *entry, fn FetchFunc) (any, error) {
	c.mu.Lock()
	e.fetching = true
	c.mu.Unlock()

	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(c.ctx, cancel)
	data, err := fn(fctx)
	stop()
	cancel()

	c.mu.Lock()
	now := c.cfg.Now()
	e.fetching = false
	if err != nil {
		e.err = err
	} else {
		e.data, e.hasData, e.err = data, true, nil
		e.updatedAt = now
		e.invalidated = false
	}
	if e.dirty {
		e.invalidated = true
	}
	subs := e.openSubs()
	refetch := e.dirty && len(subs) > 0
	e.dirty = false
	res := e.result(now)
	c.mu.Unlock()

	// Let listeners start a new flight for this key.
	c.group.Forget(e.id)

	if err != nil {
		c.log.Debug("fetch failed", logging.QueryKey(e.id), zap.Error(err))
	}
	for _, s := range subs {
		s.deliver(res)
	}
	c.reschedule(e)
	if refetch {
		c.spawn(func() { c.refresh(e, nil) })
	}
	return data, err
}

// refresh fetches a mounted entry in the background. A nil fn uses the
// fetch function of the entry's first enabled subscription.
func (c *Cache) refresh(e *entry, fn FetchFunc) {
	if fn == nil {
		c.mu.Lock()
		for _, s := range e.openSubs() {
			if s.enabled.Load() {
				fn = s.fn
				break
			}
		}
		c.mu.Unlock()
		if fn == nil {
			return
		}
	}
	ch := c.group.DoChan(e.id, func() (any, error) {
		return c.run(c.ctx, e, fn)
	})
	<-ch
}

// reschedule arms the poll task for e with the smallest positive interval
// requested by its subscribers, or cancels it when there is none.
func (c *Cache) reschedule(e *entry) {
	c.mu.Lock()
	var intervals []func(any, error) time.Duration
	for _, s := range e.openSubs() {
		if s.enabled.Load() && s.opts.refetchInterval != nil {
			intervals = append(intervals, s.opts.refetchInterval)
		}
	}
	data, err := e.data, e.err
	c.mu.Unlock()

	var next time.Duration
	for _, interval := range intervals {
		if d := interval(data, err); d > 0 && (next == 0 || d < next) {
			next = d
		}
	}
	if next == 0 {
		c.poller.Cancel(e.id)
		return
	}
	c.poller.Schedule(e.id, next, func() {
		metrics.RecordPoll()
		c.refresh(e, nil)
	})
}

// spawn runs fn on a goroutine that Close waits for.
func (c *Cache) spawn(fn func()) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Invalidate marks every entry whose key starts with one of the prefixes as
// stale and refetches the ones that have subscribers. It returns the number
// of entries marked.
func (c *Cache) Invalidate(prefixes ...Key) int {
	if len(prefixes) == 0 {
		return 0
	}
	c.mu.Lock()
	var refetch []*entry
	n := 0
	for _, e := range c.entries {
		if !hasAnyPrefix(e.key, prefixes) {
			continue
		}
		n++
		e.invalidated = true
		if e.fetching {
			e.dirty = true
			continue
		}
		if len(e.openSubs()) > 0 {
			refetch = append(refetch, e)
		}
	}
	c.mu.Unlock()

	if n > 0 {
		metrics.RecordInvalidations(n)
		c.log.Debug("invalidated queries", zap.Int("count", n), zap.Int("refetching", len(refetch)))
	}
	for _, e := range refetch {
		c.spawn(func() { c.refresh(e, nil) })
	}
	return n
}

func hasAnyPrefix(k Key, prefixes []Key) bool {
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}

// Get returns the cached snapshot for key without fetching.
func (c *Cache) Get(key Key) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok || (!e.hasData && e.err == nil) {
		return Result{}, false
	}
	return e.result(c.cfg.Now()), true
}

// State returns the status of key, StatusEmpty if it is unknown.
func (c *Cache) State(key Key) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return StatusEmpty
	}
	return e.status(c.cfg.Now())
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// GC drops unmounted entries idle for longer than GCTime and returns how
// many were removed.
func (c *Cache) GC() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.gcLocked(c.cfg.Now())
	metrics.SetCacheEntries(len(c.entries))
	return n
}

// Must be called with lock held.
func (c *Cache) gcLocked(now time.Time) int {
	removed := 0
	for id, e := range c.entries {
		if e.idle() && now.Sub(e.lastAccess) >= c.cfg.GCTime {
			delete(c.entries, id)
			removed++
		}
	}
	if c.cfg.MaxEntries > 0 {
		for len(c.entries) >= c.cfg.MaxEntries {
			if !c.evictOldest() {
				break
			}
			removed++
		}
	}
	return removed
}

// evictOldest removes the least recently accessed idle entry.
// Must be called with lock held.
func (c *Cache) evictOldest() bool {
	var oldest *entry
	for _, e := range c.entries {
		if !e.idle() {
			continue
		}
		if oldest == nil || e.lastAccess.Before(oldest.lastAccess) {
			oldest = e
		}
	}
	if oldest == nil {
		return false
	}
	delete(c.entries, oldest.id)
	return true
}

// Must be called with lock held.
func (c *Cache) entryLocked(key Key, now time.Time) *entry {
	id := key.String()
	if e, ok := c.entries[id]; ok {
		return e
	}
	c.gcLocked(now)
	e := &entry{
		id:         id,
		key:        key.clone(),
		lastAccess: now,
		staleTime:  c.cfg.StaleTime,
		subs:       make(map[uint64]*Subscription),
	}
	c.entries[id] = e
	metrics.SetCacheEntries(len(c.entries))
	return e
}

func (e *entry) idle() bool {
	return len(e.subs) == 0 && !e.fetching && e.waiters == 0
}

func (e *entry) freshAt(now time.Time) bool {
	return e.hasData && e.err == nil && !e.invalidated && now.Sub(e.updatedAt) < e.staleTime
}

func (e *entry) status(now time.Time) Status {
	switch {
	case e.fetching && !e.hasData:
		return StatusLoading
	case e.err != nil:
		return StatusError
	case !e.hasData:
		return StatusEmpty
	case e.freshAt(now):
		return StatusFresh
	default:
		return StatusStale
	}
}

func (e *entry) result(now time.Time) Result {
	st := e.status(now)
	return Result{
		Data:      e.data,
		Err:       e.err,
		Status:    st,
		UpdatedAt: e.updatedAt,
		Stale:     e.hasData && st != StatusFresh,
	}
}

// Must be called with lock held.
func (e *entry) openSubs() []*Subscription {
	subs := make([]*Subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	return subs
}
