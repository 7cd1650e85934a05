package slotlock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.FixedZone("WAT", 3600))

	assert.Equal(t, "slot:prov-1:1767603600", Key("prov-1", start))
	assert.Equal(t, Key("prov-1", start), Key("prov-1", start.UTC()))
	assert.Equal(t, "calendar:prov-1", CalendarKey("prov-1"))
}

func TestMemory_AcquireIsExclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()

	ok, err := locker.Acquire(ctx, "slot:p:1", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locker.Acquire(ctx, "slot:p:1", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must not acquire a live lock")

	ok, err = locker.Acquire(ctx, "slot:p:2", "b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different keys do not contend")
}

func TestMemory_ExpiredLockCanBeTakenOver(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	locker := NewMemory().WithClock(func() time.Time { return now })

	ok, _ := locker.Acquire(ctx, "k", "a", 30*time.Second)
	require.True(t, ok)

	now = now.Add(29 * time.Second)
	ok, _ = locker.Acquire(ctx, "k", "b", 30*time.Second)
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = locker.Acquire(ctx, "k", "b", 30*time.Second)
	assert.True(t, ok, "lock is free once its ttl elapsed")
}

func TestMemory_ReleaseOnlyByHolder(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	locker := NewMemory().WithClock(func() time.Time { return now })

	ok, _ := locker.Acquire(ctx, "k", "a", time.Second)
	require.True(t, ok)

	// a's lock expires and b takes over; a's late release must not free b's lock
	now = now.Add(2 * time.Second)
	ok, _ = locker.Acquire(ctx, "k", "b", time.Minute)
	require.True(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "a"))
	ok, _ = locker.Acquire(ctx, "k", "c", time.Minute)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "k", "b"))
	ok, _ = locker.Acquire(ctx, "k", "c", time.Minute)
	assert.True(t, ok)
}

func TestMemory_ReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()

	require.NoError(t, locker.Release(ctx, "missing", "nobody"))

	ok, _ := locker.Acquire(ctx, "k", "a", time.Minute)
	require.True(t, ok)
	require.NoError(t, locker.Release(ctx, "k", "a"))
	require.NoError(t, locker.Release(ctx, "k", "a"))
}

func TestMemory_RejectsNonPositiveTTL(t *testing.T) {
	_, err := NewMemory().Acquire(context.Background(), "k", "a", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestMemory_ConcurrentAcquireHasOneWinner(t *testing.T) {
	ctx := context.Background()
	locker := NewMemory()

	const attempts = 64
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		start   = make(chan struct{})
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ok, err := locker.Acquire(ctx, "slot:p:1", fmt.Sprintf("holder-%d", i), time.Minute)
			if err == nil && ok {
				winners.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
