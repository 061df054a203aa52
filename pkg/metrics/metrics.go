// Package metrics 定义索引构建和检索的 prometheus 指标。
// 所有方法都允许在 nil *Metrics 上调用，未启用指标时调用方无需判断。
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wikisearch/pkg/log"
)

const namespace = "wikisearch"

// Metrics 汇总所有指标。
type Metrics struct {
	documentsIndexed prometheus.Counter
	documentsSkipped prometheus.Counter
	bulkRequests     *prometheus.CounterVec
	bulkDuration     prometheus.Histogram
	embedDuration    *prometheus.HistogramVec
	searchDuration   prometheus.Histogram
	searches         *prometheus.CounterVec
}

// New 创建指标并注册到 reg。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		documentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Documents accepted by Elasticsearch bulk requests",
		}),
		documentsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_skipped_total",
			Help:      "Documents left out because their text had no known tokens",
		}),
		bulkRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_requests_total",
			Help:      "Bulk requests sent, by outcome",
		}, []string{"status"}),
		bulkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bulk_duration_seconds",
			Help:      "Bulk request latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		embedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "SWEM embedding latency, per batch when indexing and per query when searching",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"stage"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "script_score search latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Searches handled, by outcome",
		}, []string{"status"}),
	}
	reg.MustRegister(
		m.documentsIndexed, m.documentsSkipped, m.bulkRequests, m.bulkDuration,
		m.embedDuration, m.searchDuration, m.searches,
	)
	return m
}

// ObserveBulk 记录一次 bulk 请求。
func (m *Metrics) ObserveBulk(docs int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.bulkDuration.Observe(d.Seconds())
	if err != nil {
		m.bulkRequests.WithLabelValues("error").Inc()
		return
	}
	m.bulkRequests.WithLabelValues("ok").Inc()
	m.documentsIndexed.Add(float64(docs))
}

// AddSkipped 记录被跳过的文档数。
func (m *Metrics) AddSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.documentsSkipped.Add(float64(n))
}

// ObserveEmbedding 记录向量化耗时，stage 为 "index" 或 "query"。
func (m *Metrics) ObserveEmbedding(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.embedDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveSearch 记录一次检索。
func (m *Metrics) ObserveSearch(d time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.searches.WithLabelValues("error").Inc()
		return
	}
	m.searchDuration.Observe(d.Seconds())
	m.searches.WithLabelValues("ok").Inc()
}

// Serve 在 addr 上暴露 /metrics，直到 ListenAndServe 返回。
func Serve(addr string, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	log.Infof("[Metrics] 指标服务启动于 %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("[Metrics] 指标服务退出: %v", err)
	}
}
