package contact

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func TestLimiterAllowsExactlyMax(t *testing.T) {
	l := NewLimiter(600*time.Second, 5, 0)
	for i := 0; i < 5; i++ {
		d := l.Allow("1.2.3.4", t0.Add(time.Duration(i)*time.Second))
		require.True(t, d.Allowed, "request %d should pass", i+1)
	}
	d := l.Allow("1.2.3.4", t0.Add(10*time.Second))
	assert.False(t, d.Allowed)
	assert.Equal(t, 590, d.RetryAfter)

	// Other addresses are independent.
	assert.True(t, l.Allow("5.6.7.8", t0).Allowed)
}

func TestLimiterRetryAfterRoundsUp(t *testing.T) {
	l := NewLimiter(10*time.Second, 1, 0)
	require.True(t, l.Allow("a", t0).Allowed)
	d := l.Allow("a", t0.Add(8500*time.Millisecond))
	assert.False(t, d.Allowed)
	assert.Equal(t, 2, d.RetryAfter)

	d = l.Allow("a", t0.Add(10*time.Second))
	assert.False(t, d.Allowed, "window boundary is still inside the window")
	assert.Equal(t, 1, d.RetryAfter, "retry-after has a floor of one second")
}

func TestLimiterResetsAfterWindow(t *testing.T) {
	l := NewLimiter(time.Minute, 2, 0)
	require.True(t, l.Allow("a", t0).Allowed)
	require.True(t, l.Allow("a", t0).Allowed)
	require.False(t, l.Allow("a", t0.Add(30*time.Second)).Allowed)
	assert.True(t, l.Allow("a", t0.Add(61*time.Second)).Allowed)
	assert.True(t, l.Allow("a", t0.Add(62*time.Second)).Allowed)
	assert.False(t, l.Allow("a", t0.Add(63*time.Second)).Allowed)
}

func TestLimiterSweep(t *testing.T) {
	l := NewLimiter(time.Minute, 2, 0)
	l.Allow("a", t0)
	l.Allow("b", t0.Add(45*time.Second))
	require.Equal(t, 2, l.Len())
	assert.Equal(t, 1, l.Sweep(t0.Add(90*time.Second)))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 1, l.Sweep(t0.Add(200*time.Second)))
	assert.Equal(t, 0, l.Len())
}

func TestLimiterCapEvictsEarliestReset(t *testing.T) {
	l := NewLimiter(time.Minute, 1, 3)
	l.Allow("a", t0)
	l.Allow("b", t0.Add(time.Second))
	l.Allow("c", t0.Add(2*time.Second))
	l.Allow("d", t0.Add(3*time.Second))
	require.Equal(t, 3, l.Len())

	// "a" was evicted, so it starts a fresh window; "b" is still limited.
	assert.False(t, l.Allow("b", t0.Add(4*time.Second)).Allowed)
	assert.True(t, l.Allow("a", t0.Add(4*time.Second)).Allowed)
	assert.Equal(t, 3, l.Len())
}

func TestLimiterCapPrefersExpired(t *testing.T) {
	l := NewLimiter(time.Minute, 1, 2)
	l.Allow("old", t0)
	l.Allow("fresh", t0.Add(50*time.Second))
	l.Allow("new", t0.Add(70*time.Second))
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.Allow("fresh", t0.Add(71*time.Second)).Allowed, "live bucket must survive")
}

func TestLimiterConcurrent(t *testing.T) {
	l := NewLimiter(time.Minute, 50, 0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := l.Allow("same", t0)
			_ = l.Allow(fmt.Sprintf("other-%d", i), t0)
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestNewLimiterDefaults(t *testing.T) {
	l := NewLimiter(0, 0, 0)
	assert.Equal(t, DefaultWindow, l.Window())
	assert.Equal(t, DefaultMax, l.Max())
}
