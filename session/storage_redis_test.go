package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/merbs-org/clientauth/internal/clocktest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStorageTest(t *testing.T) (*RedisStorage, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStorage(rdb, "cas", DefaultTimeout), mr
}

func TestRedisStorageRoundTripAndTTL(t *testing.T) {
	storage, mr := newRedisStorageTest(t)
	ctx := context.Background()

	_, err := storage.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.Save(ctx, "k", []byte("v")))
	got, err := storage.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Equal(t, DefaultTimeout, mr.TTL("cas:k"))

	mr.FastForward(DefaultTimeout + time.Second)
	_, err = storage.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, storage.Save(ctx, "k", []byte("v")))
	require.NoError(t, storage.Remove(ctx, "k"))
	require.NoError(t, storage.Remove(ctx, "k"))
	assert.False(t, mr.Exists("cas:k"))
}

func TestRedisStorageUnavailable(t *testing.T) {
	storage, mr := newRedisStorageTest(t)
	mr.Close()

	ctx := context.Background()
	_, err := storage.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, storage.Save(ctx, "k", nil), ErrStorageUnavailable)
	assert.ErrorIs(t, storage.Remove(ctx, "k"), ErrStorageUnavailable)
}

func TestStoreSharedAcrossProcessesViaRedis(t *testing.T) {
	storage, _ := newRedisStorageTest(t)
	clock := clocktest.New(t0)
	ctx := context.Background()

	a := NewStore(Config{}, WithStorage(storage), WithScheduler(clock))
	token, err := a.Create(ctx, testUser())
	require.NoError(t, err)

	b := NewStore(Config{}, WithStorage(storage), WithScheduler(clock))
	sess, ok := b.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, token, sess.Token)

	b.Clear(ctx)
	_, err = storage.Load(ctx, DefaultStorageKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
