package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisrepo "github.com/entrada/entrada/internal/repository/redis"
)

func TestIdempotencyStore_AcquireLock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisrepo.NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectSetNX("k", "LOCK", time.Minute).SetVal(true)
	mock.ExpectSetNX("k", "LOCK", time.Minute).SetVal(false)

	ok, err := store.AcquireLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.AcquireLock(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_ResultRoundTrip(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisrepo.NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectSet("k", `RES:{"id":"p1"}`, 2*time.Hour).SetVal("OK")
	mock.ExpectGet("k").SetVal(`RES:{"id":"p1"}`)

	require.NoError(t, store.SaveResult(context.Background(), "k", `{"id":"p1"}`))

	payload, ok, err := store.GetResult(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"p1"}`, payload)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_GetResultWhileLocked(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisrepo.NewIdempotencyStore(db, 2*time.Hour)

	// A key still holding the lock marker has no replayable result yet.
	mock.ExpectGet("k").SetVal("LOCK")
	mock.ExpectGet("missing").RedisNil()

	_, ok, err := store.GetResult(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.GetResult(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_IsLocked(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisrepo.NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectGet("k").SetVal("LOCK")
	mock.ExpectGet("done").SetVal(`RES:{"id":"p1"}`)
	mock.ExpectGet("missing").RedisNil()

	locked, err := store.IsLocked(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = store.IsLocked(context.Background(), "done")
	require.NoError(t, err)
	assert.False(t, locked)

	locked, err = store.IsLocked(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyStore_Release(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := redisrepo.NewIdempotencyStore(db, 2*time.Hour)

	mock.ExpectDel("k").SetVal(1)

	require.NoError(t, store.Release(context.Background(), "k"))
	require.NoError(t, mock.ExpectationsWereMet())
}
