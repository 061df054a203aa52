// Package storage 提供了从对象存储（MinIO）读取语料的功能。
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"wikisearch/internal/config"
	"wikisearch/pkg/log"
)

// Client 封装 MinIO 客户端。
type Client struct {
	mc *minio.Client
}

// NewClient 初始化 MinIO 客户端。
func NewClient(cfg config.MinIOConfig) (*Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}
	log.Infof("[MinIO] 客户端初始化成功, endpoint: %s", cfg.Endpoint)
	return &Client{mc: mc}, nil
}

// OpenObject 打开 bucket 中的对象用于流式读取。
// GetObject 是惰性的，这里先 Stat 一次，让不存在的对象在打开时就报错。
func (c *Client) OpenObject(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("存储桶 '%s' 不存在", bucket)
	}

	obj, err := c.mc.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("从 MinIO 下载对象失败: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("读取对象 '%s/%s' 信息失败: %w", bucket, object, err)
	}
	log.Infof("[MinIO] 打开对象 %s/%s, 大小: %d 字节", bucket, object, info.Size)
	return obj, nil
}
