// Package database 负责创建外部存储连接。
package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"wikisearch/internal/config"
	"wikisearch/pkg/log"
)

// NewRedis 创建 Redis 客户端并 Ping 一次，连接失败时关闭客户端并返回错误。
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.Addr, err)
	}

	log.Infof("[Redis] 连接成功, addr: %s, db: %d", cfg.Addr, cfg.DB)
	return rdb, nil
}
