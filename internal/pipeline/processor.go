// Package pipeline 定义了语料建索引的核心流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"wikisearch/internal/config"
	"wikisearch/internal/corpus"
	"wikisearch/internal/model"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
	"wikisearch/pkg/metrics"
	"wikisearch/pkg/worker"
)

// ErrDimensionMismatch 表示文档向量维度与索引 mapping 中声明的 dims 不一致。
var ErrDimensionMismatch = errors.New("pipeline: vector dimension does not match index mapping")

// IndexWriter 是 Processor 需要的 Elasticsearch 操作，由 *es.Client 实现。
type IndexWriter interface {
	EnsureIndex(ctx context.Context, name string, def es.IndexDefinition, recreate bool) (bool, error)
	GetMapping(ctx context.Context, name string) (map[string]interface{}, error)
	Bulk(ctx context.Context, index string, docs []interface{}) (es.BulkResult, error)
}

// Options 控制建索引的行为。
type Options struct {
	IndexName   string
	VectorField string
	Recreate    bool
	BatchSize   int
	Workers     int
	// ExpectedTotal 只用于计算进度百分比，为 0 时不输出百分比
	ExpectedTotal int
}

// OptionsFromConfig 从配置构造 Options。
func OptionsFromConfig(cfg config.IndexConfig) Options {
	return Options{
		IndexName:     cfg.Name,
		VectorField:   cfg.VectorField,
		Recreate:      cfg.Recreate,
		BatchSize:     cfg.BatchSize,
		Workers:       cfg.Workers,
		ExpectedTotal: cfg.ExpectedTotal,
	}
}

// Result 汇总一次建索引的结果。
type Result struct {
	Documents int
	Indexed   int
	Skipped   int
	Batches   int
	Elapsed   time.Duration
}

// Processor 封装了建索引的所有依赖和逻辑。
type Processor struct {
	embedder embedding.Client
	writer   IndexWriter
	def      es.IndexDefinition
	opts     Options
	metrics  *metrics.Metrics
}

// NewProcessor 创建一个新的 Processor 实例。m 可以为 nil。
func NewProcessor(embedder embedding.Client, writer IndexWriter, def es.IndexDefinition, opts Options, m *metrics.Metrics) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.VectorField == "" {
		opts.VectorField = "text_vector"
	}
	return &Processor{
		embedder: embedder,
		writer:   writer,
		def:      def,
		opts:     opts,
		metrics:  m,
	}
}

// Build 准备索引，然后把 src 中的全部文章分批向量化并写入 Elasticsearch。
// 每批发送一次 bulk 请求，最后不满一批的文章也会写入。任何一次失败都会中止，不做重试。
func (p *Processor) Build(ctx context.Context, src io.Reader) (Result, error) {
	start := time.Now()
	var res Result

	log.Infof("[Processor] 步骤1: 准备索引 '%s', recreate: %t", p.opts.IndexName, p.opts.Recreate)
	if _, err := p.writer.EnsureIndex(ctx, p.opts.IndexName, p.def, p.opts.Recreate); err != nil {
		return res, fmt.Errorf("准备索引失败: %w", err)
	}
	mapping, err := p.writer.GetMapping(ctx, p.opts.IndexName)
	if err != nil {
		return res, err
	}
	log.Infow("[Processor] 当前索引 mapping", "index", p.opts.IndexName, "mapping", mapping)

	dims, err := p.def.VectorDims(p.opts.VectorField)
	if err != nil {
		log.Warnf("[Processor] 无法从索引定义中读取 '%s' 的维度, 由 Elasticsearch 校验: %v", p.opts.VectorField, err)
		dims = 0
	}

	reader, err := corpus.NewReader(src)
	if err != nil {
		return res, err
	}
	defer reader.Close()

	log.Infof("[Processor] 步骤2: 开始读取语料, batchSize: %d, workers: %d", p.opts.BatchSize, p.opts.Workers)
	batch := make([]model.WikiDocument, 0, p.opts.BatchSize)
	for {
		doc, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, fmt.Errorf("读取语料失败: %w", err)
		}
		batch = append(batch, doc)
		res.Documents++

		if len(batch) == p.opts.BatchSize {
			if err := p.flush(ctx, batch, dims, &res); err != nil {
				return res, err
			}
			batch = batch[:0]
			p.logProgress(res)
		}
	}
	if len(batch) > 0 {
		if err := p.flush(ctx, batch, dims, &res); err != nil {
			return res, err
		}
	}

	res.Elapsed = time.Since(start)
	log.Infof("[Processor] 建索引完成, 读取 %d 篇, 写入 %d 篇, 跳过 %d 篇, bulk %d 次, 耗时 %s",
		res.Documents, res.Indexed, res.Skipped, res.Batches, res.Elapsed)
	return res, nil
}

type embedded struct {
	vec  []float32
	skip bool
}

// flush 并行向量化一批文章并发送一次 bulk 请求。
func (p *Processor) flush(ctx context.Context, batch []model.WikiDocument, dims int, res *Result) error {
	embedStart := time.Now()
	vectors, err := worker.Map(ctx, p.opts.Workers, batch, func(ctx context.Context, doc model.WikiDocument) (embedded, error) {
		vec, err := p.embedder.CreateEmbedding(ctx, doc.Text)
		if errors.Is(err, embedding.ErrNoKnownTokens) {
			return embedded{skip: true}, nil
		}
		if err != nil {
			return embedded{}, err
		}
		return embedded{vec: vec}, nil
	})
	if err != nil {
		return fmt.Errorf("向量化失败: %w", err)
	}
	p.metrics.ObserveEmbedding("index", time.Since(embedStart))

	docs := make([]interface{}, 0, len(batch))
	skipped := 0
	for i, e := range vectors {
		if e.skip {
			skipped++
			log.Warnw("[Processor] 文章中没有已知词, 跳过", "title", batch[i].Title)
			continue
		}
		if dims > 0 && len(e.vec) != dims {
			return fmt.Errorf("%w: document %q has %d dimensions, index '%s' declares %d",
				ErrDimensionMismatch, batch[i].Title, len(e.vec), p.opts.IndexName, dims)
		}
		docs = append(docs, model.EsDocument{
			Title:      batch[i].Title,
			Text:       batch[i].Text,
			TextVector: e.vec,
		})
	}
	res.Skipped += skipped
	p.metrics.AddSkipped(skipped)
	if len(docs) == 0 {
		return nil
	}

	bulkStart := time.Now()
	_, err = p.writer.Bulk(ctx, p.opts.IndexName, docs)
	p.metrics.ObserveBulk(len(docs), time.Since(bulkStart), err)
	if err != nil {
		return fmt.Errorf("bulk 写入第 %d 批失败: %w", res.Batches+1, err)
	}
	res.Batches++
	res.Indexed += len(docs)
	return nil
}

func (p *Processor) logProgress(res Result) {
	if p.opts.ExpectedTotal > 0 {
		pct := 100.0 * float64(res.Documents) / float64(p.opts.ExpectedTotal)
		log.Infof("[Processor] Indexed %d documents. %.2f%%", res.Documents, pct)
		return
	}
	log.Infof("[Processor] Indexed %d documents.", res.Documents)
}
