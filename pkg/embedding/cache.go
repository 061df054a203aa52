package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"wikisearch/pkg/log"
)

const cacheKeyPrefix = "emb:"

// CachedClient 在 Redis 中缓存查询向量，缓存读写失败时退回到内部 Client。
type CachedClient struct {
	inner Client
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedClient 用 Redis 缓存包装 inner。ttl 为 0 表示不过期。
func NewCachedClient(inner Client, rdb *redis.Client, ttl time.Duration) *CachedClient {
	return &CachedClient{inner: inner, rdb: rdb, ttl: ttl}
}

// Dimensions 返回内部 Client 的维度。
func (c *CachedClient) Dimensions() int { return c.inner.Dimensions() }

// CreateEmbedding 先查缓存，未命中时调用内部 Client 并写回缓存。
func (c *CachedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(text)

	cached, err := c.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		var vec []float32
		if jerr := json.Unmarshal([]byte(cached), &vec); jerr == nil && len(vec) == c.inner.Dimensions() {
			return vec, nil
		}
		log.Warnf("[EmbeddingCache] 缓存内容无效, key: %s", key)
	case errors.Is(err, redis.Nil):
	default:
		log.Warnf("[EmbeddingCache] 读取缓存失败, key: %s, error: %v", key, err)
	}

	vec, err := c.inner.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return vec, nil
	}
	if err := c.rdb.Set(ctx, key, string(payload), c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败, key: %s, error: %v", key, err)
	}
	return vec, nil
}

// CacheKey 返回 text 对应的缓存键。
func CacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
