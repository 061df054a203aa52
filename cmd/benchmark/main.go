// Package main 是基准测试程序的入口。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wikisearch/internal/app"
	"wikisearch/internal/benchmark"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
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

	harness := benchmark.NewHarness(esClient, benchmark.OptionsFromConfig(cfg.Benchmark))
	report, err := harness.Run(ctx, cfg.Benchmark.Vectors, cfg.Benchmark.Dimensions)
	if err != nil {
		log.Fatal("基准测试失败", err)
	}

	fmt.Printf("%d vectors, %d dimensions\n", report.Vectors, report.Dimensions)
	for _, s := range report.Strategies {
		fmt.Printf("\n%s: %.2f ms\n", s.Name, float64(s.Elapsed.Microseconds())/1000)
		for _, m := range s.Top {
			fmt.Printf("  %s (index %d): %.6f\n", m.Title, m.Index, m.Similarity)
		}
	}
}
