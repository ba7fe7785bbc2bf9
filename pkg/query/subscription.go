package query

import (
	"sync"
	"sync/atomic"
)

// Subscription is a mounted query. It receives every result for its key
// until closed.
type Subscription struct {
	c        *Cache
	e        *entry
	id       uint64
	fn       FetchFunc
	listener func(Result)
	opts     options

	enabled   atomic.Bool
	closed    atomic.Bool
	deliverMu sync.Mutex
	delivered bool // guarded by deliverMu
}

// Subscribe mounts key. Cached data is delivered first; a fetch follows
// unless the data is fresh. listener calls are serialized and run on cache
// goroutines, so listener must not block for long.
func (c *Cache) Subscribe(key Key, fn FetchFunc, listener func(Result), opts ...Option) *Subscription {
	o := c.buildOptions(opts)
	s := &Subscription{c: c, fn: fn, listener: listener, opts: o}
	s.enabled.Store(o.enabled)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		s.closed.Store(true)
		return s
	}
	now := c.cfg.Now()
	e := c.entryLocked(key, now)
	e.lastAccess = now
	e.staleTime = o.staleTime
	c.nextSubID++
	s.id = c.nextSubID
	s.e = e
	e.subs[s.id] = s
	cached, hasCached := e.result(now), e.hasData
	fresh := e.freshAt(now)
	c.mu.Unlock()

	if !o.enabled {
		return s
	}
	c.spawn(func() {
		if hasCached {
			s.deliverCached(cached)
		}
		if fresh {
			c.reschedule(e)
			return
		}
		c.refresh(e, fn)
	})
	return s
}

// Key returns the subscribed key.
func (s *Subscription) Key() Key {
	if s.e == nil {
		return nil
	}
	return s.e.key
}

// Current returns the latest snapshot for the key.
func (s *Subscription) Current() Result {
	if s.e == nil {
		return Result{}
	}
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.e.result(s.c.cfg.Now())
}

// Refetch fetches the key now, joining a fetch already in flight.
func (s *Subscription) Refetch() {
	if s.closed.Load() || !s.enabled.Load() {
		return
	}
	s.c.spawn(func() { s.c.refresh(s.e, s.fn) })
}

// SetEnabled toggles the subscription. Enabling fetches the key if its data
// is not fresh; disabling stops this subscription's polling.
func (s *Subscription) SetEnabled(enabled bool) {
	if s.closed.Load() || s.enabled.Swap(enabled) == enabled {
		return
	}
	if !enabled {
		s.c.spawn(func() { s.c.reschedule(s.e) })
		return
	}
	s.c.mu.Lock()
	fresh := s.e.freshAt(s.c.cfg.Now())
	s.c.mu.Unlock()
	if fresh {
		s.c.spawn(func() { s.c.reschedule(s.e) })
		return
	}
	s.Refetch()
}

// Close stops delivery. Closing the last subscription of a key cancels its
// polling.
func (s *Subscription) Close() {
	if !s.closed.CompareAndSwap(false, true) || s.e == nil {
		return
	}
	c := s.c
	c.mu.Lock()
	delete(s.e.subs, s.id)
	s.e.lastAccess = c.cfg.Now()
	last := len(s.e.subs) == 0
	c.mu.Unlock()

	if last {
		c.poller.Cancel(s.e.id)
	}
}

func (s *Subscription) deliver(r Result) {
	if s.listener == nil {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed.Load() {
		return
	}
	s.delivered = true
	s.listener(r)
}

// deliverCached delivers the snapshot taken at Subscribe unless a fetch has
// since stored or delivered newer data.
func (s *Subscription) deliverCached(r Result) {
	if s.listener == nil {
		return
	}
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed.Load() || s.delivered {
		return
	}
	s.c.mu.Lock()
	newer := s.e.updatedAt.After(r.UpdatedAt)
	s.c.mu.Unlock()
	if newer {
		return
	}
	s.delivered = true
	s.listener(r)
}
