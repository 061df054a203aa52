package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wikisearch/internal/config"
	"wikisearch/pkg/embedding"
	"wikisearch/pkg/log"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestSetup_LoadsConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "index:\n  name: from_file\nlog:\n  level: debug\n  format: json\n")
	t.Setenv("WIKISEARCH_CONFIG", path)
	t.Cleanup(func() { log.SetLogger(zap.NewNop()) })

	cfg, err := Setup()
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.Index.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestNewEmbedder_WithoutRedis(t *testing.T) {
	dir := t.TempDir()
	vecPath := writeFile(t, dir, "vectors.txt", "2 3\nテスト 1 0 0\n東京 0 1 0\n")

	cfg := config.Config{
		Embedding: config.EmbeddingConfig{WordVectorsPath: vecPath},
	}
	client, closeFn, err := NewEmbedder(context.Background(), cfg, true)
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &embedding.SWEM{}, client)
	assert.Equal(t, 3, client.Dimensions())

	vec, err := client.CreateEmbedding(context.Background(), "テスト")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestNewEmbedder_MissingVectors(t *testing.T) {
	cfg := config.Config{Embedding: config.EmbeddingConfig{WordVectorsPath: filepath.Join(t.TempDir(), "none.txt")}}
	_, _, err := NewEmbedder(context.Background(), cfg, false)
	assert.Error(t, err)
}

func TestNewObjectStore(t *testing.T) {
	store, err := NewObjectStore(config.Config{Corpus: config.CorpusConfig{Source: "file"}})
	require.NoError(t, err)
	assert.Nil(t, store)

	_, err = NewObjectStore(config.Config{Corpus: config.CorpusConfig{Source: "minio"}})
	assert.Error(t, err)

	store, err = NewObjectStore(config.Config{
		Corpus: config.CorpusConfig{Source: "minio", Bucket: "wiki", Object: "dump.json.gz"},
		MinIO:  config.MinIOConfig{Endpoint: "localhost:9000"},
	})
	require.NoError(t, err)
	assert.NotNil(t, store)
}
