// Package main 是交互式检索程序的入口。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"wikisearch/internal/app"
	"wikisearch/internal/console"
	"wikisearch/internal/service"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
	"wikisearch/pkg/metrics"
)

func main() {
	cfg, err := app.Setup()
	if err != nil {
		// 日志尚未初始化
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("es 初始化失败", err)
	}
	embedder, closeEmbedder, err := app.NewEmbedder(ctx, cfg, true)
	if err != nil {
		log.Fatal("初始化向量化客户端失败", err)
	}
	defer closeEmbedder()

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		go metrics.Serve(cfg.Metrics.Addr, reg)
	}
	searchService := service.NewSearchService(embedder, esClient, service.OptionsFromConfig(cfg), metrics.New(reg))

	loop := console.NewQueryLoop(searchService, os.Stdin, os.Stdout, cfg.Search.Size)
	if err := loop.Run(ctx); err != nil {
		log.Fatal("检索失败", err)
	}
}
