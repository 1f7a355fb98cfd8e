package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Memory is an in-process token bucket per key. Buckets idle for longer than
// the idle window are dropped on the next call to Allow.
type Memory struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	idle    time.Duration
	buckets map[string]*bucket
	lastGC  time.Time
	now     func() time.Time
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory allows perMinute sustained requests per key with the given burst.
// perMinute <= 0 disables limiting.
func NewMemory(perMinute, burst int, idle time.Duration) *Memory {
	lim := rate.Inf
	if perMinute > 0 {
		lim = rate.Every(time.Minute / time.Duration(perMinute))
	}
	if burst <= 0 {
		burst = 1
	}
	if idle <= 0 {
		idle = 10 * time.Minute
	}
	return &Memory{
		limit:   lim,
		burst:   burst,
		idle:    idle,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (m *Memory) Allow(key string) (bool, time.Duration) {
	if m.limit == rate.Inf {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.seen = now

	r := b.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *Memory) evict(now time.Time) {
	if now.Sub(m.lastGC) < m.idle {
		return
	}
	m.lastGC = now
	for k, b := range m.buckets {
		if now.Sub(b.seen) >= m.idle {
			delete(m.buckets, k)
		}
	}
}
