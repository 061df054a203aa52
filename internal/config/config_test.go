package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "wikipedia_index", cfg.Index.Name)
	assert.Equal(t, 1000, cfg.Index.BatchSize)
	assert.Equal(t, 6, cfg.Index.Workers)
	assert.Equal(t, 1165654, cfg.Index.ExpectedTotal)
	assert.False(t, cfg.Index.Recreate)
	assert.Equal(t, 10, cfg.Search.Size)
	assert.Equal(t, "text_vector", cfg.Search.VectorField)
	assert.Equal(t, "sample_index", cfg.Benchmark.IndexName)
	assert.Equal(t, 128, cfg.Benchmark.Dimensions)
	assert.Equal(t, "file", cfg.Corpus.Source)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
elasticsearch:
  addresses:
    - "http://es-1:9200"
    - "http://es-2:9200"
index:
  name: "wiki_test"
  batch_size: 250
search:
  size: 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"http://es-1:9200", "http://es-2:9200"}, cfg.Elasticsearch.Addresses)
	assert.Equal(t, "wiki_test", cfg.Index.Name)
	assert.Equal(t, 250, cfg.Index.BatchSize)
	assert.Equal(t, 6, cfg.Index.Workers)
	assert.Equal(t, 5, cfg.Search.Size)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WIKISEARCH_INDEX_RECREATE", "true")
	t.Setenv("WIKISEARCH_REDIS_ADDR", "localhost:6379")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Index.Recreate)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"no addresses", func(c *Config) { c.Elasticsearch.Addresses = nil }, "elasticsearch.addresses is required"},
		{"zero batch", func(c *Config) { c.Index.BatchSize = 0 }, "index.batch_size must be positive, got 0"},
		{"zero workers", func(c *Config) { c.Index.Workers = 0 }, "index.workers must be positive, got 0"},
		{"bad source", func(c *Config) { c.Corpus.Source = "ftp" }, `corpus.source must be "file" or "minio", got "ftp"`},
		{"minio without object", func(c *Config) {
			c.Corpus.Source = "minio"
			c.Corpus.Bucket = "wiki"
		}, "corpus.bucket and corpus.object are required when corpus.source is minio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.errMsg, err.Error())
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv("WIKISEARCH_CONFIG", "")
	assert.Equal(t, DefaultPath, PathFromEnv())

	t.Setenv("WIKISEARCH_CONFIG", "/etc/wikisearch.yaml")
	assert.Equal(t, "/etc/wikisearch.yaml", PathFromEnv())
}
