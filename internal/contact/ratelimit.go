package contact

import (
	"math"
	"sync"
	"time"
)

// Defaults for the fixed-window limiter.
const (
	DefaultWindow     = 600 * time.Second
	DefaultMax        = 5
	DefaultMaxBuckets = 10000
)

// Bucket tracks submissions from one address within the current window.
type Bucket struct {
	ResetAt time.Time
	Count   int
}

// Decision is the outcome of a rate check.
type Decision struct {
	Allowed bool
	// RetryAfter is the whole number of seconds until the window resets,
	// set only when Allowed is false.
	RetryAfter int
}

// Limiter is a fixed-window counter keyed by client address. It is safe for
// concurrent use.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*Bucket
	window     time.Duration
	max        int
	maxBuckets int
}

// NewLimiter creates a limiter allowing max requests per window. Non-positive
// values fall back to the defaults. maxBuckets bounds memory; zero or less
// selects DefaultMaxBuckets.
func NewLimiter(window time.Duration, max, maxBuckets int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	return &Limiter{
		buckets:    make(map[string]*Bucket),
		window:     window,
		max:        max,
		maxBuckets: maxBuckets,
	}
}

// Allow records a request from addr at now and reports whether it may
// proceed.
func (l *Limiter) Allow(addr string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[addr]
	if !ok || now.After(b.ResetAt) {
		if !ok && len(l.buckets) >= l.maxBuckets {
			l.evictLocked(now)
		}
		l.buckets[addr] = &Bucket{ResetAt: now.Add(l.window), Count: 1}
		return Decision{Allowed: true}
	}
	if b.Count >= l.max {
		secs := int(math.Ceil(b.ResetAt.Sub(now).Seconds()))
		if secs < 1 {
			secs = 1
		}
		return Decision{Allowed: false, RetryAfter: secs}
	}
	b.Count++
	return Decision{Allowed: true}
}

// Sweep drops buckets whose window has passed and returns how many were
// removed.
func (l *Limiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(now)
}

// Len returns the number of tracked addresses.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Max returns the number of requests allowed per window.
func (l *Limiter) Max() int { return l.max }

func (l *Limiter) sweepLocked(now time.Time) int {
	n := 0
	for addr, b := range l.buckets {
		if now.After(b.ResetAt) {
			delete(l.buckets, addr)
			n++
		}
	}
	return n
}

// evictLocked makes room for one bucket: expired buckets go first, otherwise
// the bucket closest to reset is dropped.
func (l *Limiter) evictLocked(now time.Time) {
	if l.sweepLocked(now) > 0 {
		return
	}
	var oldest string
	var oldestAt time.Time
	for addr, b := range l.buckets {
		if oldest == "" || b.ResetAt.Before(oldestAt) {
			oldest, oldestAt = addr, b.ResetAt
		}
	}
	delete(l.buckets, oldest)
}
