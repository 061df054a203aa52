// Package app 汇集各个命令共用的启动步骤：加载配置、初始化日志、创建向量化客户端。
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"wikisearch/internal/config"
	"wikisearch/internal/corpus"
	"wikisearch/pkg/database"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/log"
	"wikisearch/pkg/storage"
)

// Setup 加载 .env（可选）和配置文件，然后初始化日志记录器。
func Setup() (config.Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := config.Load(config.PathFromEnv())
	if err != nil {
		return config.Config{}, err
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		return config.Config{}, err
	}
	log.Info("日志记录器初始化成功")
	return cfg, nil
}

// NewEmbedder 加载词向量和 kagome 分词器并创建 SWEM。withCache 为 true 且配置了 redis.addr 时，
// 用 Redis 缓存包装查询向量；Redis 不可用时只记录警告。返回的 close 函数释放 Redis 连接。
func NewEmbedder(ctx context.Context, cfg config.Config, withCache bool) (embedding.Client, func(), error) {
	start := time.Now()
	vectors, err := embedding.LoadWordVectors(cfg.Embedding.WordVectorsPath)
	if err != nil {
		return nil, nil, err
	}
	log.Infof("[App] 词向量加载完成, 词数: %d, 维度: %d, 耗时: %s", vectors.Len(), vectors.Dimensions(), time.Since(start))

	tok, err := embedding.NewKagomeTokenizer()
	if err != nil {
		return nil, nil, err
	}
	var client embedding.Client = embedding.NewSWEM(vectors, tok)
	noop := func() {}

	if !withCache || cfg.Redis.Addr == "" {
		return client, noop, nil
	}
	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Warnf("[App] Redis 不可用, 不启用查询向量缓存: %v", err)
		return client, noop, nil
	}
	ttl := time.Duration(cfg.Embedding.CacheTTLMinutes) * time.Minute
	return embedding.NewCachedClient(client, rdb, ttl), func() { _ = rdb.Close() }, nil
}

// NewObjectStore 在语料来源为 minio 时创建 MinIO 客户端，否则返回 nil。
func NewObjectStore(cfg config.Config) (corpus.ObjectOpener, error) {
	if cfg.Corpus.Source != "minio" {
		return nil, nil
	}
	if cfg.MinIO.Endpoint == "" {
		return nil, fmt.Errorf("corpus source minio requires minio.endpoint")
	}
	client, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	return client, nil
}
