package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingClient struct {
	calls int
	vec   []float32
	err   error
}

func (c *countingClient) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	c.calls++
	return c.vec, c.err
}

func (c *countingClient) Dimensions() int { return len(c.vec) }

func TestCachedClient_MissThenHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingClient{vec: []float32{0.5, 1}}
	c := NewCachedClient(inner, db, time.Hour)
	key := CacheKey("テスト")

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "[0.5,1]", time.Hour).SetVal("OK")
	vec, err := c.CreateEmbedding(context.Background(), "テスト")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, vec)

	mock.ExpectGet(key).SetVal("[0.5,1]")
	vec, err = c.CreateEmbedding(context.Background(), "テスト")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 1}, vec)

	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedClient_RedisDownFallsThrough(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingClient{vec: []float32{1, 2}}
	c := NewCachedClient(inner, db, time.Minute)
	key := CacheKey("東京")

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "[1,2]", time.Minute).SetErr(errors.New("connection refused"))

	vec, err := c.CreateEmbedding(context.Background(), "東京")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
	assert.Equal(t, 1, inner.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachedClient_InnerErrorNotCached(t *testing.T) {
	db, mock := redismock.NewClientMock()
	inner := &countingClient{vec: []float32{1, 2}, err: ErrNoKnownTokens}
	c := NewCachedClient(inner, db, time.Minute)
	key := CacheKey("???")

	mock.ExpectGet(key).RedisNil()

	_, err := c.CreateEmbedding(context.Background(), "???")
	assert.ErrorIs(t, err, ErrNoKnownTokens)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKey_Stable(t *testing.T) {
	assert.Equal(t, CacheKey("a"), CacheKey("a"))
	assert.NotEqual(t, CacheKey("a"), CacheKey("b"))
	assert.Len(t, CacheKey("a"), len(cacheKeyPrefix)+64)
}
