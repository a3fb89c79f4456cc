package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "account:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, km.entries)
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	km := NewKeyedMutex()
	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex()
	unlock, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = km.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock()
	assert.Empty(t, km.entries)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, 30*time.Second)

	unlock, err := locker.Lock(context.Background(), "account:7")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"account:7"))

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "account:7")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"account:7"))

	unlock2, err := locker.Lock(context.Background(), "account:7")
	require.NoError(t, err)
	unlock2()
}

func TestRedisLocker_ReleaseKeepsForeignOwner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)

	unlock, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)

	// The TTL lapses and another process takes the lock.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set(keyPrefix+"k", "other-owner"))

	unlock()
	got, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}

func TestChain_ReleasesOnFailure(t *testing.T) {
	local := NewKeyedMutex()
	_, rdb := newTestRedis(t)
	remote := NewRedisLocker(rdb, time.Second)

	held, err := remote.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = Chain(local, remote).Lock(ctx, "k")
	require.Error(t, err)

	unlock, err := local.Lock(context.Background(), "k")
	require.NoError(t, err)
	unlock()
}
