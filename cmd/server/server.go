package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"wikisearch/internal/app"
	"wikisearch/internal/config"
	"wikisearch/internal/handler"
	"wikisearch/internal/service"
	"wikisearch/pkg/es"
	"wikisearch/pkg/metrics"
)

// newServer 创建 Elasticsearch 和向量化客户端并注册路由，任何一步失败都返回错误。
// 返回的 cleanup 释放 Redis 连接。
func newServer(cfg config.Config) (*http.Server, func(), error) {
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		return nil, nil, fmt.Errorf("es 初始化失败: %w", err)
	}
	embedder, closeEmbedder, err := app.NewEmbedder(context.Background(), cfg, true)
	if err != nil {
		return nil, nil, fmt.Errorf("初始化向量化客户端失败: %w", err)
	}

	reg := prometheus.NewRegistry()
	searchService := service.NewSearchService(embedder, esClient, service.OptionsFromConfig(cfg), metrics.New(reg))

	gin.SetMode(cfg.Server.Mode)
	r := handler.NewRouter(searchService, cfg.Search.Size, reg)
	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}, closeEmbedder, nil
}
