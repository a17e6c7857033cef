// Package ratelimit implements a fixed-window request counter keyed by client.
//
// Each client key owns one window record holding a request count and the
// instant the window expires. A request past the expiry starts a new window;
// a request that would exceed the maximum inside the current window is
// rejected with the number of whole seconds until the window resets.
//
// Records are sharded by key hash and every check-and-increment runs inside
// its shard's critical section, so concurrent requests from one client can
// never admit more than the configured maximum. Expired records are evicted
// by a lazy per-shard sweep so memory stays bounded by the number of clients
// active within one window.
//
// Example Usage:
//
//	limiter := ratelimit.New(ratelimit.Options{})
//	d := limiter.Check("read:203.0.113.9", ratelimit.Rule{Window: 15 * time.Minute, Max: 100})
//	if !d.Allowed {
//	    // respond 429 with d.RetryAfter
//	}
package ratelimit

import (
	"hash/fnv"
	"math"
	"sync"
	"time"
)

const (
	defaultShards        = 32
	defaultSweepInterval = time.Minute
)

// Rule configures one fixed window
type Rule struct {
	Window time.Duration
	Max    int
}

// Decision is the outcome of a single check
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int // seconds, set only when rejected
}

// Options configures a Limiter
type Options struct {
	// Shards is the number of independently locked partitions
	Shards int
	// SweepInterval bounds how often a shard scans for expired records
	SweepInterval time.Duration
	// Now overrides the clock (tests)
	Now func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

// Limiter tracks per-client fixed windows
type Limiter struct {
	shards        []*shard
	sweepInterval time.Duration
	now           func() time.Time
}

// New creates a limiter
func New(opts Options) *Limiter {
	if opts.Shards <= 0 {
		opts.Shards = defaultShards
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Limiter{
		shards:        make([]*shard, opts.Shards),
		sweepInterval: opts.SweepInterval,
		now:           opts.Now,
	}
	start := opts.Now()
	for i := range l.shards {
		l.shards[i] = &shard{
			windows:   make(map[string]*window),
			nextSweep: start.Add(opts.SweepInterval),
		}
	}
	return l
}

// Check atomically evaluates and records one request for key
func (l *Limiter) Check(key string, rule Rule) Decision {
	s := l.shardFor(key)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(l.sweepInterval)
	}

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(rule.Window)}
		s.windows[key] = w
		return allowed(rule, w)
	}

	if w.count >= rule.Max {
		return Decision{
			Allowed:    false,
			Limit:      rule.Max,
			Remaining:  0,
			ResetAt:    w.resetAt,
			RetryAfter: retryAfter(w.resetAt.Sub(now)),
		}
	}

	w.count++
	return allowed(rule, w)
}

// Len returns the number of tracked records
func (l *Limiter) Len() int {
	total := 0
	for _, s := range l.shards {
		s.mu.Lock()
		total += len(s.windows)
		s.mu.Unlock()
	}
	return total
}

// Sweep evicts every expired record immediately
func (l *Limiter) Sweep() {
	now := l.now()
	for _, s := range l.shards {
		s.mu.Lock()
		s.sweep(now)
		s.nextSweep = now.Add(l.sweepInterval)
		s.mu.Unlock()
	}
}

func (l *Limiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// sweep must be called with the shard lock held
func (s *shard) sweep(now time.Time) {
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

func allowed(rule Rule, w *window) Decision {
	remaining := rule.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   true,
		Limit:     rule.Max,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

func retryAfter(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
