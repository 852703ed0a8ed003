package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partscout/backend/internal/domain"
)

func TestRedisSessionStore_Get(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, time.Hour)
	ctx := context.TODO()

	data, err := json.Marshal(testSession("s1", 2))
	require.NoError(t, err)

	// Success
	mock.ExpectGet("partscout:session:s1").SetVal(string(data))
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "SSD", got.Keyword)
	assert.Equal(t, int64(2), got.Revision)
	assert.Equal(t, domain.StateManufacturersFetched, got.State)

	// Missing
	mock.ExpectGet("partscout:session:gone").RedisNil()
	_, err = store.Get(ctx, "gone")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	// Error
	mock.ExpectGet("partscout:session:s1").SetErr(errors.New("redis error"))
	_, err = store.Get(ctx, "s1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis get failure")

	// Corrupt value
	mock.ExpectGet("partscout:session:s1").SetVal("{not json")
	_, err = store.Get(ctx, "s1")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode session")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisSessionStore_Save(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisSessionStore(db, 30*time.Minute)
	ctx := context.TODO()

	session := testSession("s1", 3)
	data, err := json.Marshal(session)
	require.NoError(t, err)
	keys := []string{"partscout:session:s1"}

	// Success
	mock.ExpectEvalSha(saveScript.Hash(), keys, int64(2), string(data), int64(1800000)).SetVal(int64(1))
	assert.NoError(t, store.Save(ctx, session, 2))

	// Superseded
	mock.ExpectEvalSha(saveScript.Hash(), keys, int64(2), string(data), int64(1800000)).SetVal(int64(0))
	err = store.Save(ctx, session, 2)
	assert.ErrorIs(t, err, domain.ErrStaleSession)

	// Error
	mock.ExpectEvalSha(saveScript.Hash(), keys, int64(2), string(data), int64(1800000)).SetErr(errors.New("redis error"))
	err = store.Save(ctx, session, 2)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis save failure")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}

func TestRedisSessionStore_Close(t *testing.T) {
	db, _ := redismock.NewClientMock()
	store := NewRedisSessionStore(db, time.Hour)

	assert.NoError(t, store.Close())
	_, err := store.Get(context.TODO(), "s1")
	assert.Error(t, err)
}

func TestNewRedisSessionStoreFromURL_InvalidURL(t *testing.T) {
	_, err := NewRedisSessionStoreFromURL(context.TODO(), "not-a-redis-url", time.Hour)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid redis url")
}
