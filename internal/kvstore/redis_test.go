package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisClient_Ping(t *testing.T) {
	client, _ := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestRedisClient_GetSet(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, "key1", "value1", 0))

	val, err := client.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestRedisClient_GetMissingKey(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisClient_Expiry(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, "ephemeral", "x", time.Minute))

	mr.FastForward(2 * time.Minute)

	_, err := client.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisClient_Delete(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, "a", "1", 0))
	require.NoError(t, client.SetWithExpiry(ctx, "b", "2", 0))

	require.NoError(t, client.Delete(ctx, "a", "b"))

	_, err := client.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = client.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisClient_DeleteNoKeys(t *testing.T) {
	client, _ := newTestClient(t)
	assert.NoError(t, client.Delete(context.Background()))
}

func TestRedisClient_KeysByPattern(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.SetWithExpiry(ctx, SnapshotKey("user-1", "sess-1"), "{}", 0))
	require.NoError(t, client.SetWithExpiry(ctx, SnapshotKey("user-1", "sess-2"), "{}", 0))
	require.NoError(t, client.SetWithExpiry(ctx, SnapshotKey("user-2", "sess-3"), "{}", 0))
	require.NoError(t, client.SetWithExpiry(ctx, ArchiveKey("chat_messages", "arch-1"), "{}", 0))

	keys, err := client.KeysByPattern(ctx, SnapshotPatternForUser("user-1"))
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	keys, err = client.KeysByPattern(ctx, SnapshotPatternForSession("sess-3"))
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, SnapshotKey("user-2", "sess-3"), keys[0])

	keys, err = client.KeysByPattern(ctx, SnapshotPatternAll())
	require.NoError(t, err)
	assert.Len(t, keys, 3)

	keys, err = client.KeysByPattern(ctx, ArchivePattern("chat_messages"))
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "recovery:u1:s1", SnapshotKey("u1", "s1"))
	assert.Equal(t, "recovery:u1:*", SnapshotPatternForUser("u1"))
	assert.Equal(t, "recovery:*:s1", SnapshotPatternForSession("s1"))
	assert.Equal(t, "recovery:*", SnapshotPatternAll())
	assert.Equal(t, "archive:chat_messages:id1", ArchiveKey("chat_messages", "id1"))
	assert.Equal(t, "archive:chat_messages:*", ArchivePattern("chat_messages"))
}
