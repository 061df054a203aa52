// Package benchmark 比较 Elasticsearch script_score 检索和内存线性扫描的耗时。
package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/viant/vec/search"

	"wikisearch/internal/config"
	"wikisearch/internal/model"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
	"wikisearch/pkg/worker"
)

const vectorField = "title_vector"

// 策略名称
const (
	StrategyElasticsearch = "elasticsearch script_score"
	StrategyLinear        = "linear scan"
	StrategyParallel      = "parallel linear scan"
)

// VectorStore 是基准测试需要的 Elasticsearch 操作，由 *es.Client 实现。
type VectorStore interface {
	EnsureIndex(ctx context.Context, name string, def es.IndexDefinition, recreate bool) (bool, error)
	GetMapping(ctx context.Context, name string) (map[string]interface{}, error)
	CatIndices(ctx context.Context) ([]string, error)
	Bulk(ctx context.Context, index string, docs []interface{}) (es.BulkResult, error)
	Refresh(ctx context.Context, name string) error
	VectorSearch(ctx context.Context, q es.VectorQuery) (*es.SearchResult, error)
}

// Options 控制基准测试。
type Options struct {
	IndexName string
	TopK      int
	BatchSize int
	// Workers 为 0 时使用 runtime.NumCPU()
	Workers int
	// Seed 为 0 时使用当前时间
	Seed int64
}

// OptionsFromConfig 从配置构造 Options。
func OptionsFromConfig(cfg config.BenchmarkConfig) Options {
	return Options{
		IndexName: cfg.IndexName,
		TopK:      cfg.TopK,
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		Seed:      cfg.Seed,
	}
}

// Match 是一个候选向量及其与查询向量的余弦相似度。
type Match struct {
	Index      int
	Title      string
	Similarity float64
}

// StrategyResult 是一种策略的单次计时结果，Top 按相似度降序排列。
type StrategyResult struct {
	Name    string
	Elapsed time.Duration
	Top     []Match
}

// Best 返回相似度最高的候选。
func (r StrategyResult) Best() (Match, bool) {
	if len(r.Top) == 0 {
		return Match{}, false
	}
	return r.Top[0], true
}

// Report 汇总一次基准测试。
type Report struct {
	Vectors    int
	Dimensions int
	Strategies []StrategyResult
}

// Harness 运行基准测试。
type Harness struct {
	store VectorStore
	opts  Options
}

// NewHarness 创建 Harness 并补全默认值。
func NewHarness(store VectorStore, opts Options) *Harness {
	if opts.IndexName == "" {
		opts.IndexName = "sample_index"
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	return &Harness{store: store, opts: opts}
}

// Run 生成 nVectors 个 dim 维随机向量写入专用索引，然后用同一个随机查询向量
// 依次计时三种策略。每种策略只测一次，不做断言。
func (h *Harness) Run(ctx context.Context, nVectors, dim int) (Report, error) {
	if nVectors <= 0 || dim <= 0 {
		return Report{}, fmt.Errorf("vectors and dimensions must be positive, got %d and %d", nVectors, dim)
	}
	report := Report{Vectors: nVectors, Dimensions: dim}
	rng := rand.New(rand.NewSource(h.opts.Seed))

	log.Infof("[Benchmark] 步骤1: 重建索引 '%s', dims: %d", h.opts.IndexName, dim)
	if _, err := h.store.EnsureIndex(ctx, h.opts.IndexName, es.VectorDefinition(vectorField, dim), true); err != nil {
		return report, err
	}
	mapping, err := h.store.GetMapping(ctx, h.opts.IndexName)
	if err != nil {
		return report, err
	}
	log.Infow("[Benchmark] 索引 mapping", "index", h.opts.IndexName, "mapping", mapping)
	indices, err := h.store.CatIndices(ctx)
	if err != nil {
		return report, err
	}
	log.Infof("[Benchmark] 当前索引: %v", indices)

	log.Infof("[Benchmark] 步骤2: 生成并写入 %d 个随机向量", nVectors)
	vectors := randomVectors(rng, nVectors, dim)
	if err := h.insert(ctx, vectors); err != nil {
		return report, err
	}
	if err := h.store.Refresh(ctx, h.opts.IndexName); err != nil {
		return report, err
	}

	query := randomVectors(rng, 1, dim)[0]
	log.Info("[Benchmark] 步骤3: 开始计时")

	esResult, err := h.searchElasticsearch(ctx, query)
	if err != nil {
		return report, err
	}
	report.Strategies = append(report.Strategies, esResult)
	report.Strategies = append(report.Strategies, h.linearScan(vectors, query))
	parallel, err := h.parallelScan(ctx, vectors, query)
	if err != nil {
		return report, err
	}
	report.Strategies = append(report.Strategies, parallel)

	for _, s := range report.Strategies {
		best, _ := s.Best()
		log.Infof("[Benchmark] %s: %s, best: %s (%.6f)", s.Name, s.Elapsed, best.Title, best.Similarity)
	}
	return report, nil
}

func (h *Harness) insert(ctx context.Context, vectors [][]float32) error {
	for start := 0; start < len(vectors); start += h.opts.BatchSize {
		end := start + h.opts.BatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		docs := make([]interface{}, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, model.BenchmarkDocument{ID: i, Title: title(i), TitleVector: vectors[i]})
		}
		if _, err := h.store.Bulk(ctx, h.opts.IndexName, docs); err != nil {
			return fmt.Errorf("写入随机向量 [%d, %d) 失败: %w", start, end, err)
		}
	}
	return nil
}

func (h *Harness) searchElasticsearch(ctx context.Context, query []float32) (StrategyResult, error) {
	start := time.Now()
	res, err := h.store.VectorSearch(ctx, es.VectorQuery{
		Index:          h.opts.IndexName,
		Field:          vectorField,
		Param:          vectorField,
		Vector:         query,
		Size:           h.opts.TopK,
		SourceIncludes: []string{"id", "title"},
	})
	elapsed := time.Since(start)
	if err != nil {
		return StrategyResult{}, err
	}

	top := make([]Match, 0, len(res.Hits))
	for _, hit := range res.Hits {
		var doc model.BenchmarkDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			return StrategyResult{}, fmt.Errorf("解析命中文档 %s 失败: %w", hit.ID, err)
		}
		// 脚本得分为 cosine + 1.0
		top = append(top, Match{Index: doc.ID, Title: doc.Title, Similarity: hit.Score - 1.0})
	}
	return StrategyResult{Name: StrategyElasticsearch, Elapsed: elapsed, Top: top}, nil
}

func (h *Harness) linearScan(vectors [][]float32, query []float32) StrategyResult {
	start := time.Now()
	top := scan(vectors, query, 0, len(vectors), h.opts.TopK)
	return StrategyResult{Name: StrategyLinear, Elapsed: time.Since(start), Top: top}
}

func (h *Harness) parallelScan(ctx context.Context, vectors [][]float32, query []float32) (StrategyResult, error) {
	start := time.Now()
	parts, err := worker.Map(ctx, h.opts.Workers, worker.Chunks(len(vectors), h.opts.Workers),
		func(_ context.Context, r [2]int) ([]Match, error) {
			return scan(vectors, query, r[0], r[1], h.opts.TopK), nil
		})
	if err != nil {
		return StrategyResult{}, err
	}
	var merged []Match
	for _, p := range parts {
		merged = append(merged, p...)
	}
	sortMatches(merged)
	if len(merged) > h.opts.TopK {
		merged = merged[:h.opts.TopK]
	}
	return StrategyResult{Name: StrategyParallel, Elapsed: time.Since(start), Top: merged}, nil
}

// scan 计算 vectors[from:to] 与 query 的余弦相似度，返回前 k 个。
func scan(vectors [][]float32, query []float32, from, to, k int) []Match {
	top := make([]Match, 0, k+1)
	for i := from; i < to; i++ {
		sim := 1 - float64(search.Float32s(vectors[i]).CosineDistance(query))
		if len(top) == k && sim <= top[k-1].Similarity {
			continue
		}
		top = append(top, Match{Index: i, Title: title(i), Similarity: sim})
		sortMatches(top)
		if len(top) > k {
			top = top[:k]
		}
	}
	return top
}

func sortMatches(m []Match) {
	sort.SliceStable(m, func(i, j int) bool { return m[i].Similarity > m[j].Similarity })
}

func randomVectors(rng *rand.Rand, n, dim int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = rng.Float32()
		}
		out[i] = v
	}
	return out
}

func title(i int) string { return fmt.Sprintf("title_%d", i) }
