// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"wikisearch/internal/config"
	"wikisearch/pkg/log"
)

// ErrBulkItems 表示 bulk 请求本身成功，但其中至少一条文档被拒绝（例如向量维度不匹配）。
var ErrBulkItems = errors.New("es: bulk request had rejected items")

// Client 封装 go-elasticsearch 客户端，只暴露本项目需要的索引和检索操作。
type Client struct {
	es *elasticsearch.Client
}

// NewClient 根据配置创建 Elasticsearch 客户端。
func NewClient(esCfg config.ElasticsearchConfig) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: esCfg.Addresses,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
	}
	if esCfg.InsecureSkipVerify {
		cfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("创建 Elasticsearch 客户端失败: %w", err)
	}
	return &Client{es: client}, nil
}

// IndexExists 检查索引是否存在。
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{name}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("检查索引是否存在失败: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", name, res.StatusCode)
	}
}

// DeleteIndex 删除索引，索引不存在时视为成功。
func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	res, err := c.es.Indices.Delete([]string{name}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("删除索引 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		return responseError("删除索引", res)
	}
	log.Infof("[ES] 索引 '%s' 已删除", name)
	return nil
}

// CreateIndex 使用给定的定义创建索引。
func (c *Client) CreateIndex(ctx context.Context, name string, def IndexDefinition) error {
	body, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("序列化索引定义失败: %w", err)
	}
	res, err := c.es.Indices.Create(
		name,
		c.es.Indices.Create.WithBody(bytes.NewReader(body)),
		c.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("创建索引", res)
	}
	log.Infof("[ES] 索引 '%s' 创建成功", name)
	return nil
}

// EnsureIndex 保证名为 name 的索引存在。recreate 为 true 时先删除已有索引再创建（会丢失数据）；
// 为 false 时已有索引保持不变。返回值表示本次是否执行了创建。
func (c *Client) EnsureIndex(ctx context.Context, name string, def IndexDefinition, recreate bool) (bool, error) {
	exists, err := c.IndexExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		if !recreate {
			log.Infof("[ES] 索引 '%s' 已存在，跳过创建", name)
			return false, nil
		}
		log.Warnf("[ES] 索引 '%s' 已存在，按配置删除后重建", name)
		if err := c.DeleteIndex(ctx, name); err != nil {
			return false, err
		}
	}
	if err := c.CreateIndex(ctx, name, def); err != nil {
		return false, err
	}
	return true, nil
}

// GetMapping 返回索引的 mapping，结构为 {index: {mappings: {...}}}。
func (c *Client) GetMapping(ctx context.Context, name string) (map[string]interface{}, error) {
	res, err := c.es.Indices.GetMapping(
		c.es.Indices.GetMapping.WithIndex(name),
		c.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("获取 mapping 失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("获取 mapping", res)
	}
	var mapping map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&mapping); err != nil {
		return nil, fmt.Errorf("解析 mapping 失败: %w", err)
	}
	return mapping, nil
}

// CatIndices 列出集群中的所有索引名。
func (c *Client) CatIndices(ctx context.Context) ([]string, error) {
	res, err := c.es.Cat.Indices(
		c.es.Cat.Indices.WithH("index"),
		c.es.Cat.Indices.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("获取索引列表失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("获取索引列表", res)
	}
	var names []string
	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		if name := strings.TrimSpace(scanner.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, scanner.Err()
}

// Refresh 刷新索引，使之前写入的文档可以被检索到。
func (c *Client) Refresh(ctx context.Context, name string) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithIndex(name),
		c.es.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("刷新索引 '%s' 失败: %w", name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("刷新索引", res)
	}
	return nil
}

// BulkResult 汇总一次 bulk 请求的结果。
type BulkResult struct {
	Items  int
	Failed int
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Bulk 在一次 _bulk 请求中把 docs 写入 index。任一文档被拒绝时返回 ErrBulkItems，不做重试。
func (c *Client) Bulk(ctx context.Context, index string, docs []interface{}) (BulkResult, error) {
	if len(docs) == 0 {
		return BulkResult{}, nil
	}

	var buf bytes.Buffer
	action := []byte(`{"index":{}}` + "\n")
	for i, doc := range docs {
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return BulkResult{}, fmt.Errorf("序列化第 %d 个文档失败: %w", i, err)
		}
		buf.Write(action)
		buf.Write(docBytes)
		buf.WriteByte('\n')
	}

	req := esapi.BulkRequest{
		Index: index,
		Body:  &buf,
	}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return BulkResult{}, fmt.Errorf("bulk 请求失败: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return BulkResult{}, responseError("bulk 写入", res)
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return BulkResult{}, fmt.Errorf("解析 bulk 响应失败: %w", err)
	}

	result := BulkResult{Items: len(br.Items)}
	var first string
	for _, item := range br.Items {
		for _, op := range item {
			if op.Error == nil {
				continue
			}
			result.Failed++
			if first == "" {
				first = fmt.Sprintf("[%d] %s: %s", op.Status, op.Error.Type, op.Error.Reason)
			}
		}
	}
	if br.Errors || result.Failed > 0 {
		return result, fmt.Errorf("%w: %d of %d failed, first: %s", ErrBulkItems, result.Failed, result.Items, first)
	}
	return result, nil
}

// SearchHit 是一条检索结果，Source 保留原始 JSON 由调用方解码。
type SearchHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// SearchResult 是 _search 的结果。
type SearchResult struct {
	Total int64
	Hits  []SearchHit
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []SearchHit `json:"hits"`
	} `json:"hits"`
}

// VectorSearch 执行 script_score 余弦相似度检索。
func (c *Client) VectorSearch(ctx context.Context, q VectorQuery) (*SearchResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(q.Body()); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(q.Index),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}
	return &SearchResult{Total: sr.Hits.Total.Value, Hits: sr.Hits.Hits}, nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(res.Body)
	err := fmt.Errorf("%s: elasticsearch returned %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
	log.Error("[ES] Elasticsearch 返回错误", err)
	return err
}
