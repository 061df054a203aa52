// Package main 是建索引程序的入口：读取语料，计算 SWEM 向量并写入 Elasticsearch。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"wikisearch/internal/app"
	"wikisearch/internal/corpus"
	"wikisearch/internal/pipeline"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
	"wikisearch/pkg/metrics"
)

func main() {
	// 1. 加载配置并初始化日志
	cfg, err := app.Setup()
	if err != nil {
		// 日志尚未初始化
		fmt.Fprintf(os.Stderr, "初始化失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 指标（可选）
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go metrics.Serve(cfg.Metrics.Addr, reg)
	}

	// 3. 初始化 Elasticsearch 和向量化客户端
	esClient, err := es.NewClient(cfg.Elasticsearch)
	if err != nil {
		log.Fatal("es 初始化失败", err)
	}
	def, err := es.LoadIndexDefinition(cfg.Index.DefinitionPath)
	if err != nil {
		log.Fatal("加载索引定义失败", err)
	}
	embedder, closeEmbedder, err := app.NewEmbedder(ctx, cfg, false)
	if err != nil {
		log.Fatal("初始化向量化客户端失败", err)
	}
	defer closeEmbedder()

	// 4. 打开语料
	objects, err := app.NewObjectStore(cfg)
	if err != nil {
		log.Fatal("初始化 MinIO 失败", err)
	}
	src, err := corpus.Open(ctx, cfg.Corpus, objects)
	if err != nil {
		log.Fatal("打开语料失败", err)
	}
	defer src.Close()
	log.Infof("开始建索引, 语料: %s, 索引: %s", corpus.Describe(cfg.Corpus), cfg.Index.Name)

	// 5. 建索引
	processor := pipeline.NewProcessor(embedder, esClient, def, pipeline.OptionsFromConfig(cfg.Index), m)
	res, err := processor.Build(ctx, src)
	if err != nil {
		log.Errorf("建索引失败, 已写入 %d 篇: %v", res.Indexed, err)
		log.Sync()
		os.Exit(1)
	}
	log.Infow("建索引完成",
		"documents", res.Documents,
		"indexed", res.Indexed,
		"skipped", res.Skipped,
		"batches", res.Batches,
		"elapsed", res.Elapsed.String(),
	)
}
