// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPath 是未设置 WIKISEARCH_CONFIG 时使用的配置文件路径。
const DefaultPath = "./configs/config.yaml"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Index         IndexConfig         `mapstructure:"index"`
	Corpus        CorpusConfig        `mapstructure:"corpus"`
	Search        SearchConfig        `mapstructure:"search"`
	Benchmark     BenchmarkConfig     `mapstructure:"benchmark"`
	Redis         RedisConfig         `mapstructure:"redis"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

// ServerConfig 存储 HTTP 搜索服务相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses          []string `mapstructure:"addresses"`
	Username           string   `mapstructure:"username"`
	Password           string   `mapstructure:"password"`
	InsecureSkipVerify bool     `mapstructure:"insecure_skip_verify"`
}

// EmbeddingConfig 存储词向量和 SWEM 相关的配置。
type EmbeddingConfig struct {
	WordVectorsPath string `mapstructure:"word_vectors_path"`
	CacheTTLMinutes int    `mapstructure:"cache_ttl_minutes"`
}

// IndexConfig 存储索引构建相关的配置。
type IndexConfig struct {
	Name           string `mapstructure:"name"`
	DefinitionPath string `mapstructure:"definition_path"`
	VectorField    string `mapstructure:"vector_field"`
	// Recreate 为 true 时会删除已存在的同名索引后重建，数据会丢失。
	Recreate      bool `mapstructure:"recreate"`
	BatchSize     int  `mapstructure:"batch_size"`
	Workers       int  `mapstructure:"workers"`
	ExpectedTotal int  `mapstructure:"expected_total"`
}

// CorpusConfig 描述语料来源：本地文件或 MinIO 对象。
type CorpusConfig struct {
	Source string `mapstructure:"source"`
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// SearchConfig 存储查询相关的配置。
type SearchConfig struct {
	Size        int    `mapstructure:"size"`
	VectorField string `mapstructure:"vector_field"`
}

// BenchmarkConfig 存储基准测试相关的配置。
type BenchmarkConfig struct {
	IndexName  string `mapstructure:"index_name"`
	Vectors    int    `mapstructure:"vectors"`
	Dimensions int    `mapstructure:"dimensions"`
	TopK       int    `mapstructure:"top_k"`
	BatchSize  int    `mapstructure:"batch_size"`
	Workers    int    `mapstructure:"workers"`
	Seed       int64  `mapstructure:"seed"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用查询向量缓存。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// MetricsConfig 存储 prometheus 指标暴露地址，为空表示不单独监听。
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.insecure_skip_verify", false)

	v.SetDefault("embedding.word_vectors_path", "./data/jawiki.word_vectors.200d.txt")
	v.SetDefault("embedding.cache_ttl_minutes", 60)

	v.SetDefault("index.name", "wikipedia_index")
	v.SetDefault("index.definition_path", "./configs/index.json")
	v.SetDefault("index.vector_field", "text_vector")
	v.SetDefault("index.recreate", false)
	v.SetDefault("index.batch_size", 1000)
	v.SetDefault("index.workers", 6)
	v.SetDefault("index.expected_total", 1165654)

	v.SetDefault("corpus.source", "file")
	v.SetDefault("corpus.path", "./data/jawiki-20230522-cirrussearch-content.json.gz")
	v.SetDefault("corpus.bucket", "")
	v.SetDefault("corpus.object", "")

	v.SetDefault("search.size", 10)
	v.SetDefault("search.vector_field", "text_vector")

	v.SetDefault("benchmark.index_name", "sample_index")
	v.SetDefault("benchmark.vectors", 10000)
	v.SetDefault("benchmark.dimensions", 128)
	v.SetDefault("benchmark.top_k", 3)
	v.SetDefault("benchmark.batch_size", 1000)
	v.SetDefault("benchmark.workers", 0)
	v.SetDefault("benchmark.seed", 0)

	// 以下键没有实际默认值，注册空值是为了让 AutomaticEnv 在 Unmarshal 时生效
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("metrics.addr", "")
}

// Load 从指定路径读取 YAML 配置文件并解析。文件不存在时只使用默认值和环境变量，
// 任何键都可以用 WIKISEARCH_<SECTION>_<KEY> 形式的环境变量覆盖。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WIKISEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate 检查配置中的必填项和取值范围。
func (c Config) Validate() error {
	if len(c.Elasticsearch.Addresses) == 0 {
		return errors.New("elasticsearch.addresses is required")
	}
	if c.Index.Name == "" {
		return errors.New("index.name is required")
	}
	if c.Index.BatchSize <= 0 {
		return fmt.Errorf("index.batch_size must be positive, got %d", c.Index.BatchSize)
	}
	if c.Index.Workers <= 0 {
		return fmt.Errorf("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Search.Size <= 0 {
		return fmt.Errorf("search.size must be positive, got %d", c.Search.Size)
	}
	switch c.Corpus.Source {
	case "file":
		if c.Corpus.Path == "" {
			return errors.New("corpus.path is required when corpus.source is file")
		}
	case "minio":
		if c.Corpus.Bucket == "" || c.Corpus.Object == "" {
			return errors.New("corpus.bucket and corpus.object are required when corpus.source is minio")
		}
	default:
		return fmt.Errorf(`corpus.source must be "file" or "minio", got %q`, c.Corpus.Source)
	}
	if c.Benchmark.Dimensions <= 0 {
		return fmt.Errorf("benchmark.dimensions must be positive, got %d", c.Benchmark.Dimensions)
	}
	return nil
}

// PathFromEnv 返回 WIKISEARCH_CONFIG 指定的配置文件路径，未设置时返回 DefaultPath。
func PathFromEnv() string {
	if p := os.Getenv("WIKISEARCH_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}
