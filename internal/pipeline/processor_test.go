package pipeline

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikisearch/internal/config"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/es"
	"wikisearch/pkg/es/estest"
	"wikisearch/pkg/metrics"
)

const testIndex = "wikipedia_index"

func newESClient(t *testing.T) (*es.Client, *estest.Server) {
	t.Helper()
	srv := estest.NewServer(t)
	c, err := es.NewClient(config.ElasticsearchConfig{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return c, srv
}

// newEmbedder 返回一个 dim 维的 SWEM，词表包含 "東京" 和 "大阪"，按空格分词。
func newEmbedder(t *testing.T, dim int) embedding.Client {
	t.Helper()
	tokyo := make([]float32, dim)
	osaka := make([]float32, dim)
	tokyo[0] = 1
	osaka[dim-1] = 1
	wv, err := embedding.NewWordVectors(dim, map[string][]float32{"東京": tokyo, "大阪": osaka})
	require.NoError(t, err)
	return embedding.NewSWEM(wv, embedding.TokenizerFunc(strings.Fields))
}

func textVectorDefinition(dims int) es.IndexDefinition {
	return es.IndexDefinition{
		Settings: map[string]interface{}{"number_of_shards": 1},
		Mappings: map[string]interface{}{
			"properties": map[string]interface{}{
				"title":       map[string]interface{}{"type": "text"},
				"text":        map[string]interface{}{"type": "text"},
				"text_vector": map[string]interface{}{"type": "dense_vector", "dims": dims},
			},
		},
	}
}

// corpusOf 生成 n 篇文章的 gzip 语料，每篇前面带一个 bulk action 头行。
func corpusOf(t *testing.T, n int, text func(i int) string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	for i := 0; i < n; i++ {
		fmt.Fprintf(gz, "{\"index\":{\"_type\":\"page\",\"_id\":\"%d\"}}\n", i)
		fmt.Fprintf(gz, "{\"title\":\"記事%d\",\"text\":%q,\"namespace\":0}\n", i, text(i))
	}
	require.NoError(t, gz.Close())
	return &buf
}

func tokyo(int) string { return "東京 と 大阪" }

func options(batch int) Options {
	return Options{
		IndexName:     testIndex,
		VectorField:   "text_vector",
		Recreate:      true,
		BatchSize:     batch,
		Workers:       6,
		ExpectedTotal: 1165654,
	}
}

func TestBuild_BatchesAndFlushesTail(t *testing.T) {
	client, srv := newESClient(t)
	m := metrics.New(prometheus.NewRegistry())
	p := NewProcessor(newEmbedder(t, 200), client, textVectorDefinition(200), options(1000), m)

	res, err := p.Build(context.Background(), corpusOf(t, 2500, tokyo))
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 1000, 500}, srv.BulkSizes(testIndex))
	assert.Equal(t, 2500, res.Documents)
	assert.Equal(t, 2500, res.Indexed)
	assert.Equal(t, 3, res.Batches)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2500, srv.DocCount(testIndex))
}

func TestBuild_BulkCallsAreCeilOfDocsOverBatch(t *testing.T) {
	tests := []struct {
		docs, batch int
		want        []int
	}{
		{docs: 10, batch: 3, want: []int{3, 3, 3, 1}},
		{docs: 9, batch: 3, want: []int{3, 3, 3}},
		{docs: 2, batch: 5, want: []int{2}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.docs, tt.batch), func(t *testing.T) {
			client, srv := newESClient(t)
			p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), options(tt.batch), nil)

			res, err := p.Build(context.Background(), corpusOf(t, tt.docs, tokyo))
			require.NoError(t, err)
			assert.Equal(t, tt.want, srv.BulkSizes(testIndex))
			assert.Equal(t, len(tt.want), res.Batches)
		})
	}
}

func TestBuild_EveryBodyLineBecomesOneDocument(t *testing.T) {
	client, srv := newESClient(t)
	p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), options(100), nil)

	_, err := p.Build(context.Background(), corpusOf(t, 7, tokyo))
	require.NoError(t, err)

	docs := srv.Docs(testIndex)
	require.Len(t, docs, 7)
	for i, d := range docs {
		assert.Equal(t, fmt.Sprintf("記事%d", i), d["title"])
		assert.NotContains(t, d, "index")
		assert.Len(t, d["text_vector"], 4)
	}
}

func TestBuild_SkipsDocumentsWithoutKnownTokens(t *testing.T) {
	client, srv := newESClient(t)
	p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), options(2), nil)

	text := func(i int) string {
		if i%2 == 0 {
			return "名古屋"
		}
		return "東京"
	}
	res, err := p.Build(context.Background(), corpusOf(t, 4, text))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Documents)
	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, []int{1, 1}, srv.BulkSizes(testIndex))
}

func TestBuild_SkipsDocumentsAveragingToZero(t *testing.T) {
	client, srv := newESClient(t)
	wv, err := embedding.NewWordVectors(2, map[string][]float32{
		"上": {1, -1},
		"下": {-1, 1},
	})
	require.NoError(t, err)
	swem := embedding.NewSWEM(wv, embedding.TokenizerFunc(strings.Fields))
	p := NewProcessor(swem, client, textVectorDefinition(2), options(10), nil)

	text := func(i int) string {
		if i == 1 {
			return "上 下"
		}
		return "上"
	}
	res, err := p.Build(context.Background(), corpusOf(t, 3, text))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Indexed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 2, srv.DocCount(testIndex))
}

func TestBuild_DimensionMismatchFailsAtWrite(t *testing.T) {
	client, srv := newESClient(t)
	p := NewProcessor(newEmbedder(t, 200), client, textVectorDefinition(128), options(1000), nil)

	_, err := p.Build(context.Background(), corpusOf(t, 3, tokyo))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, srv.DocCount(testIndex))
}

func TestBuild_ElasticsearchRejectsMismatchedVectors(t *testing.T) {
	client, srv := newESClient(t)
	ctx := context.Background()
	// 已有的 128 维索引，recreate=false 时保持不变
	_, err := client.EnsureIndex(ctx, testIndex, textVectorDefinition(128), false)
	require.NoError(t, err)

	opts := options(1000)
	opts.Recreate = false
	p := NewProcessor(newEmbedder(t, 200), client, textVectorDefinition(200), opts, nil)

	_, err = p.Build(ctx, corpusOf(t, 3, tokyo))
	require.ErrorIs(t, err, es.ErrBulkItems)
	assert.Equal(t, 0, srv.DocCount(testIndex))
}

func TestBuild_RecreateTwiceLeavesOneIndex(t *testing.T) {
	client, srv := newESClient(t)
	p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), options(10), nil)

	for i := 0; i < 2; i++ {
		_, err := p.Build(context.Background(), corpusOf(t, 5, tokyo))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{testIndex}, srv.Indices())
	assert.Equal(t, 5, srv.DocCount(testIndex))
}

func TestBuild_WithoutRecreateKeepsExistingIndex(t *testing.T) {
	client, srv := newESClient(t)
	opts := options(10)
	opts.Recreate = false
	p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), opts, nil)

	for i := 0; i < 2; i++ {
		_, err := p.Build(context.Background(), corpusOf(t, 5, tokyo))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, srv.CreateCount(testIndex))
	assert.Equal(t, 10, srv.DocCount(testIndex))
}

func TestBuild_MalformedLineAborts(t *testing.T) {
	client, srv := newESClient(t)
	p := NewProcessor(newEmbedder(t, 4), client, textVectorDefinition(4), options(2), nil)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	io.WriteString(gz, "{\"title\":\"a\",\"text\":\"東京\"}\n{\"title\":\"b\",\"text\":\"東京\"}\n{\"title\": oops\n")
	require.NoError(t, gz.Close())

	res, err := p.Build(context.Background(), &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
	assert.Equal(t, 1, res.Batches)
	assert.Equal(t, 2, srv.DocCount(testIndex))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.IndexConfig{
		Name: "wiki", VectorField: "text_vector", Recreate: true, BatchSize: 10, Workers: 2, ExpectedTotal: 99,
	})
	assert.Equal(t, Options{IndexName: "wiki", VectorField: "text_vector", Recreate: true, BatchSize: 10, Workers: 2, ExpectedTotal: 99}, opts)
}
