// Package service 提供了搜索相关的业务逻辑。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wikisearch/internal/config"
	"wikisearch/internal/model"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/es"
	"wikisearch/pkg/log"
	"wikisearch/pkg/metrics"
)

// queryParam 是 script_score 脚本中查询向量的参数名。
const queryParam = "query_vector"

// Searcher 是向量检索需要的 Elasticsearch 操作，由 *es.Client 实现。
type Searcher interface {
	VectorSearch(ctx context.Context, q es.VectorQuery) (*es.SearchResult, error)
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	Search(ctx context.Context, query string, size int) (*SearchResult, error)
}

// SearchResult 是一次检索的结果和耗时拆分。
type SearchResult struct {
	Total        int64
	Hits         []model.SearchHit
	EncodingTime time.Duration
	SearchTime   time.Duration
}

// Options 控制检索的目标索引和默认返回条数。
type Options struct {
	IndexName   string
	VectorField string
	Size        int
}

// OptionsFromConfig 从配置构造 Options。
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		IndexName:   cfg.Index.Name,
		VectorField: cfg.Search.VectorField,
		Size:        cfg.Search.Size,
	}
}

type searchService struct {
	embeddingClient embedding.Client
	searcher        Searcher
	opts            Options
	metrics         *metrics.Metrics
}

// NewSearchService 创建一个新的 SearchService 实例。m 可以为 nil。
func NewSearchService(embeddingClient embedding.Client, searcher Searcher, opts Options, m *metrics.Metrics) SearchService {
	if opts.Size <= 0 {
		opts.Size = 10
	}
	if opts.VectorField == "" {
		opts.VectorField = "text_vector"
	}
	return &searchService{
		embeddingClient: embeddingClient,
		searcher:        searcher,
		opts:            opts,
		metrics:         m,
	}
}

// Search 把 query 向量化后按余弦相似度检索，得分为 cosine + 1.0。size <= 0 时使用默认条数。
// 查询中没有已知词时返回的错误包装了 embedding.ErrNoKnownTokens。
func (s *searchService) Search(ctx context.Context, query string, size int) (*SearchResult, error) {
	if size <= 0 {
		size = s.opts.Size
	}
	log.Debugf("[SearchService] 开始检索, query: '%s', size: %d", query, size)

	encodeStart := time.Now()
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	encodingTime := time.Since(encodeStart)
	if err != nil {
		s.metrics.ObserveSearch(encodingTime, err)
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	s.metrics.ObserveEmbedding("query", encodingTime)

	searchStart := time.Now()
	res, err := s.searcher.VectorSearch(ctx, es.VectorQuery{
		Index:          s.opts.IndexName,
		Field:          s.opts.VectorField,
		Param:          queryParam,
		Vector:         queryVector,
		Size:           size,
		SourceIncludes: []string{"title", "text"},
	})
	searchTime := time.Since(searchStart)
	s.metrics.ObserveSearch(searchTime, err)
	if err != nil {
		log.Errorf("[SearchService] Elasticsearch 检索失败: %v", err)
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		var src model.WikiDocument
		if len(h.Source) > 0 {
			if err := json.Unmarshal(h.Source, &src); err != nil {
				return nil, fmt.Errorf("failed to decode hit %s: %w", h.ID, err)
			}
		}
		hits = append(hits, model.SearchHit{ID: h.ID, Score: h.Score, Title: src.Title, Text: src.Text})
	}

	log.Infof("[SearchService] 检索完成, query: '%s', total: %d, 编码 %s, 检索 %s", query, res.Total, encodingTime, searchTime)
	return &SearchResult{
		Total:        res.Total,
		Hits:         hits,
		EncodingTime: encodingTime,
		SearchTime:   searchTime,
	}, nil
}
