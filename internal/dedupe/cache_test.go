// ABOUTME: Tests for the TTL key cache
// ABOUTME: Uses a fake clock for expiry and covers eviction, forgetting, and concurrency

package dedupe

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func TestCache_CheckAndMark(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("acct-1"), "first mark is new")
	assert.True(t, cache.CheckAndMark("acct-1"), "second mark is a repeat")
	assert.False(t, cache.CheckAndMark("acct-2"))
}

func TestCache_Expiry(t *testing.T) {
	clock := newFakeClock()
	cache := New(30*time.Second, 100, WithClock(clock.Now))
	defer cache.Close()

	require.False(t, cache.CheckAndMark("acct"))
	assert.Equal(t, 30*time.Second, cache.Remaining("acct"))

	clock.Advance(20 * time.Second)
	assert.True(t, cache.CheckAndMark("acct"))
	assert.Equal(t, 10*time.Second, cache.Remaining("acct"))

	clock.Advance(10 * time.Second)
	assert.Zero(t, cache.Remaining("acct"))
	assert.False(t, cache.CheckAndMark("acct"), "expired key is marked afresh")
}

func TestCache_Forget(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	cache.CheckAndMark("acct")
	cache.Forget("acct")
	assert.Zero(t, cache.Len())
	assert.False(t, cache.CheckAndMark("acct"))

	cache.Forget("never-marked")
}

func TestCache_EvictsOldestAtCapacity(t *testing.T) {
	cache := New(time.Minute, 3)
	defer cache.Close()

	for i := range 4 {
		cache.CheckAndMark(fmt.Sprintf("k%d", i))
	}
	assert.Equal(t, 3, cache.Len())
	assert.Zero(t, cache.Remaining("k0"), "oldest entry evicted")
	assert.NotZero(t, cache.Remaining("k3"))
}

func TestCache_RemoveExpired(t *testing.T) {
	clock := newFakeClock()
	cache := New(time.Second, 100, WithClock(clock.Now))
	defer cache.Close()

	cache.CheckAndMark("old")
	clock.Advance(2 * time.Second)
	cache.CheckAndMark("fresh")

	cache.removeExpired()
	assert.Equal(t, 1, cache.Len())
	assert.NotZero(t, cache.Remaining("fresh"))
}

func TestCache_ConcurrentCheckAndMark(t *testing.T) {
	cache := New(time.Minute, 100)
	defer cache.Close()

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("same") {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), fresh.Load())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	cache := New(time.Minute, 10)
	cache.Close()
	cache.Close()
}
