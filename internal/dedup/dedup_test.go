package dedup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeen_FirstAndRepeat(t *testing.T) {
	d := New("")
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "wamid.1"))
	assert.True(t, d.Seen(ctx, "wamid.1"))
	assert.False(t, d.Seen(ctx, "wamid.2"))
}

func TestSeen_EmptyIDNeverDeduplicated(t *testing.T) {
	d := New("")
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, ""))
	assert.False(t, d.Seen(ctx, ""))
}

func TestSeen_ExpiredEntryForgotten(t *testing.T) {
	d := New("")
	d.ttl = 10 * time.Millisecond
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "wamid.1"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, d.Seen(ctx, "wamid.1"))
}

func TestForget_AllowsReprocessing(t *testing.T) {
	d := New("")
	ctx := context.Background()

	assert.False(t, d.Seen(ctx, "wamid.1"))
	d.Forget(ctx, "wamid.1")
	assert.False(t, d.Seen(ctx, "wamid.1"))
	assert.True(t, d.Seen(ctx, "wamid.1"))
}

func TestForget_UnknownAndEmptyIDs(t *testing.T) {
	d := New("")
	ctx := context.Background()

	d.Forget(ctx, "wamid.never-seen")
	d.Forget(ctx, "")
	assert.False(t, d.Seen(ctx, "wamid.never-seen"))
}

func TestEvict_DropsSoonestToExpire(t *testing.T) {
	d := New("")
	now := time.Now()

	d.mu.Lock()
	for i := 0; i < maxLocalEntries; i++ {
		d.local[fmt.Sprintf("wamid.%d", i)] = now.Add(time.Duration(i+1) * time.Minute)
	}
	d.evictLocked(now)
	_, oldestKept := d.local["wamid.0"]
	_, newestKept := d.local[fmt.Sprintf("wamid.%d", maxLocalEntries-1)]
	size := len(d.local)
	d.mu.Unlock()

	assert.Less(t, size, maxLocalEntries)
	assert.False(t, oldestKept)
	assert.True(t, newestKept)
}

func TestSeen_BoundedCapacity(t *testing.T) {
	d := New("")
	ctx := context.Background()

	for i := 0; i < maxLocalEntries+100; i++ {
		d.Seen(ctx, fmt.Sprintf("wamid.%d", i))
	}

	d.mu.Lock()
	size := len(d.local)
	d.mu.Unlock()
	assert.LessOrEqual(t, size, maxLocalEntries)
}

func TestSeen_ConcurrentSingleWinner(t *testing.T) {
	d := New("")
	ctx := context.Background()

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen(ctx, "wamid.race") {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestNew_BadRedisURLFallsBack(t *testing.T) {
	d := New("not-a-url")
	assert.Nil(t, d.client)
	assert.False(t, d.Seen(context.Background(), "wamid.1"))
	assert.True(t, d.Seen(context.Background(), "wamid.1"))
}
