// Package dataset 管理上传的数据集：解析、内联或 Blob 存储、目录查询与级联删除
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/file"
	"github.com/ashwinyue/next-analytics/internal/service/parser"
	"github.com/ashwinyue/next-analytics/internal/service/sqlquery"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

const (
	previewRows = 10
	blobPrefix  = "datasets"
)

// FrameCache 数据帧缓存
type FrameCache interface {
	Load(ctx context.Context, datasetID string) (*table.Table, error)
	Invalidate(ctx context.Context, datasetID string)
}

// Service 数据集服务
type Service struct {
	repo            *repository.Repositories
	storage         file.Storage
	cache           FrameCache
	query           *sqlquery.Runner
	inlineThreshold int64
	logger          *zap.SugaredLogger
}

// NewService 创建数据集服务
// 编码后超过 inlineThreshold 字节的数据集存入 Blob
func NewService(repo *repository.Repositories, storage file.Storage, cache FrameCache, query *sqlquery.Runner, inlineThreshold int64, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:            repo,
		storage:         storage,
		cache:           cache,
		query:           query,
		inlineThreshold: inlineThreshold,
		logger:          logger,
	}
}

// UploadRequest 上传请求
type UploadRequest struct {
	Name     string
	FileName string
	Reader   io.Reader
}

// UploadResult 上传结果
type UploadResult struct {
	Dataset *model.Dataset   `json:"dataset"`
	Preview []map[string]any `json:"preview"`
	// BlobURL 仅 Blob 存储的数据集返回
	BlobURL string `json:"blob_url,omitempty"`
	Message string `json:"message"`
}

// Upload 解析文件并创建数据集
func (s *Service) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if req.FileName == "" {
		return nil, apperr.Validation("file name is required")
	}
	if !parser.Supported(req.FileName) {
		return nil, apperr.Validation("unsupported file type: %s", filepath.Ext(req.FileName))
	}

	tb, err := parser.Parse(ctx, req.FileName, req.Reader)
	if err != nil {
		return nil, err
	}
	if tb.NumRows() == 0 {
		return nil, apperr.Validation("uploaded file %s contains no rows", req.FileName)
	}

	encoded, err := tb.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode dataset: %w", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(req.FileName), filepath.Ext(req.FileName))
	}
	now := time.Now()
	ds := &model.Dataset{
		ID:          uuid.New().String(),
		Name:        name,
		FileName:    req.FileName,
		RowCount:    tb.NumRows(),
		ColumnCount: tb.NumCols(),
		Columns:     datatypes.NewJSONSlice(tb.Columns()),
		DTypes:      datatypes.NewJSONType(tb.DTypeHints()),
		StorageType: model.StorageTypeDirect,
		SizeBytes:   int64(len(encoded)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if ds.SizeBytes > s.inlineThreshold {
		path, err := s.storage.Save(ctx, &file.SaveRequest{
			FileName:    ds.ID + ".json",
			ContentType: "application/json",
			Size:        ds.SizeBytes,
			Reader:      bytes.NewReader(encoded),
			Prefix:      blobPrefix,
		})
		if err != nil {
			return nil, apperr.Storage(fmt.Errorf("failed to store dataset blob: %w", err))
		}
		ds.StorageType = model.StorageTypeBlob
		ds.BlobPath = path
	} else {
		ds.InlineData = datatypes.JSON(encoded)
	}

	if err := s.repo.Dataset.Create(ctx, ds); err != nil {
		if ds.BlobPath != "" {
			if derr := s.storage.Delete(ctx, ds.BlobPath); derr != nil {
				s.logger.Warnf("failed to clean up blob %s: %v", ds.BlobPath, derr)
			}
		}
		return nil, err
	}

	s.logger.Infof("dataset %s uploaded: %d rows, %d columns, storage=%s", ds.ID, ds.RowCount, ds.ColumnCount, ds.StorageType)
	res := &UploadResult{
		Dataset: ds,
		Preview: tb.Head(previewRows).Records(),
		Message: fmt.Sprintf("Uploaded %s with %d rows and %d columns", req.FileName, ds.RowCount, ds.ColumnCount),
	}
	if ds.BlobPath != "" {
		res.BlobURL = s.storage.GetURL(ds.BlobPath)
	}
	return res, nil
}

// Detail 数据集详情
type Detail struct {
	*model.Dataset
	Preview []map[string]any `json:"preview"`
}

// GetDataset 获取数据集及前几行预览
func (s *Service) GetDataset(ctx context.Context, id string) (*Detail, error) {
	ds, err := s.repo.Dataset.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tb, err := s.cache.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Dataset: ds, Preview: tb.Head(previewRows).Records()}, nil
}

// ListDatasets 分页列出数据集
func (s *Service) ListDatasets(ctx context.Context, page, size int) ([]*model.Dataset, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	datasets, total, err := s.repo.Dataset.List(ctx, offset, size)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list datasets: %w", err)
	}
	return datasets, total, nil
}

// DeleteDataset 删除数据集及其工作区、训练记录与 Blob
func (s *Service) DeleteDataset(ctx context.Context, id string) error {
	ds, err := s.repo.Dataset.GetByID(ctx, id)
	if err != nil {
		return err
	}
	workspaces, err := s.repo.Workspace.ListByDataset(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Dataset.Delete(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)

	// 元数据删除成功后再清理 Blob，失败只记录日志
	blobs := make([]string, 0, len(workspaces)+1)
	if ds.BlobPath != "" {
		blobs = append(blobs, ds.BlobPath)
	}
	for _, ws := range workspaces {
		if ws.BlobPath != "" {
			blobs = append(blobs, ws.BlobPath)
		}
	}
	for _, p := range blobs {
		if err := s.storage.Delete(ctx, p); err != nil {
			s.logger.Warnf("failed to delete blob %s: %v", p, err)
		}
	}

	s.logger.Infof("dataset %s deleted (%d workspaces)", id, len(workspaces))
	return nil
}

// QueryRequest 数据集 SQL 查询请求，表名固定为 dataset
type QueryRequest struct {
	SQL   string `json:"sql"`
	Limit int    `json:"limit"`
}

// Query 在数据集上执行只读 SQL
func (s *Service) Query(ctx context.Context, id string, req *QueryRequest) (*sqlquery.Result, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, apperr.Validation("sql is required")
	}
	tb, err := s.cache.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.query.Run(ctx, tb, req.SQL, req.Limit)
}
