package corpus

import (
	"context"
	"fmt"
	"io"
	"os"

	"wikisearch/internal/config"
)

// ObjectOpener 打开对象存储中的对象，由 pkg/storage 的 MinIO 客户端实现。
type ObjectOpener interface {
	OpenObject(ctx context.Context, bucket, object string) (io.ReadCloser, error)
}

// Open 按配置打开语料：本地文件或 MinIO 对象。source 为 minio 时 objects 不能为 nil。
func Open(ctx context.Context, cfg config.CorpusConfig, objects ObjectOpener) (io.ReadCloser, error) {
	switch cfg.Source {
	case "", "file":
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("打开语料文件失败: %w", err)
		}
		return f, nil
	case "minio":
		if objects == nil {
			return nil, fmt.Errorf("corpus source minio requires an object store client")
		}
		obj, err := objects.OpenObject(ctx, cfg.Bucket, cfg.Object)
		if err != nil {
			return nil, fmt.Errorf("从 MinIO 打开语料失败: %w", err)
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unknown corpus source %q", cfg.Source)
	}
}

// Describe 返回语料来源的可读描述，用于日志。
func Describe(cfg config.CorpusConfig) string {
	if cfg.Source == "minio" {
		return fmt.Sprintf("minio://%s/%s", cfg.Bucket, cfg.Object)
	}
	return cfg.Path
}
