// Package file 提供 Blob 存储抽象，大数据集与工作区快照存放于此
package file

import (
	"context"
	"fmt"
	"io"

	"github.com/ashwinyue/next-analytics/internal/config"
)

// Storage Blob 存储接口
type Storage interface {
	// Save 保存内容，返回存储路径
	Save(ctx context.Context, req *SaveRequest) (string, error)
	// Get 获取内容，路径不存在时返回 apperr.ErrNotFound
	Get(ctx context.Context, filePath string) (io.ReadCloser, error)
	// Delete 删除内容，路径不存在视为成功
	Delete(ctx context.Context, filePath string) error
	// GetURL 获取访问URL
	GetURL(filePath string) string
}

// SaveRequest 保存请求
type SaveRequest struct {
	FileName    string
	ContentType string
	Size        int64
	Reader      io.Reader
	// Prefix 存储路径前缀，如 datasets、workspaces
	Prefix string
}

// StorageType 存储类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeMinIO StorageType = "minio"
)

// NewStorage 根据配置创建存储
func NewStorage(cfg config.StorageConfig) (Storage, error) {
	switch StorageType(cfg.Type) {
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.Local.BasePath, cfg.Local.URLPrefix)
	case StorageTypeMinIO:
		return NewMinIOStorage(&MinIOConfig{
			Endpoint:   cfg.MinIO.Endpoint,
			AccessKey:  cfg.MinIO.AccessKey,
			SecretKey:  cfg.MinIO.SecretKey,
			BucketName: cfg.MinIO.Bucket,
			UseSSL:     cfg.MinIO.UseSSL,
			URLPrefix:  cfg.MinIO.URLPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ReadAll 读取完整内容
func ReadAll(ctx context.Context, s Storage, filePath string) ([]byte, error) {
	rc, err := s.Get(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return data, nil
}

// objectName 生成对象名: {prefix}/{uuid}{ext}
func objectName(req *SaveRequest, id string) string {
	ext := extension(req.FileName, req.ContentType)
	if req.Prefix == "" {
		return id + ext
	}
	return fmt.Sprintf("%s/%s%s", req.Prefix, id, ext)
}
