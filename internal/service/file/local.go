package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-analytics/internal/apperr"
)

// LocalStorage 本地文件存储
type LocalStorage struct {
	basePath  string // 基础路径
	urlPrefix string // URL前缀，用于生成访问URL
}

// NewLocalStorage 创建本地存储服务
func NewLocalStorage(basePath, urlPrefix string) (*LocalStorage, error) {
	// 确保基础路径存在
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Save 保存到本地
func (s *LocalStorage) Save(ctx context.Context, req *SaveRequest) (string, error) {
	relativePath := objectName(req, uuid.New().String())
	fullPath := filepath.Join(s.basePath, relativePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, req.Reader); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return relativePath, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(ctx context.Context, filePath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(filePath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, apperr.NotFound("file %s not found", filePath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(ctx context.Context, filePath string) error {
	fullPath, err := s.resolve(filePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// GetURL 获取文件的访问URL
func (s *LocalStorage) GetURL(filePath string) string {
	return fmt.Sprintf("%s/%s", s.urlPrefix, filePath)
}

// resolve 拒绝越出基础路径的相对路径
func (s *LocalStorage) resolve(filePath string) (string, error) {
	fullPath := filepath.Join(s.basePath, filePath)
	rel, err := filepath.Rel(s.basePath, fullPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", apperr.Validation("invalid file path: %s", filePath)
	}
	return fullPath, nil
}

// extension 根据文件名或内容类型返回扩展名
func extension(fileName, contentType string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return ext
	}
	switch contentType {
	case "text/csv":
		return ".csv"
	case "application/json":
		return ".json"
	case "application/vnd.apache.parquet":
		return ".parquet"
	default:
		return ".bin"
	}
}
