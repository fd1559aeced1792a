package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/file"
)

// MemoryStores 内存仓库集合，Err 非空时所有操作返回该错误
type MemoryStores struct {
	mu         sync.Mutex
	Err        error
	datasets   map[string]*model.Dataset
	workspaces map[string]*model.Workspace
	training   []*model.TrainingMetadata
	feedback   []*model.Feedback
}

// NewMemoryStores 创建内存仓库
func NewMemoryStores() *MemoryStores {
	return &MemoryStores{
		datasets:   make(map[string]*model.Dataset),
		workspaces: make(map[string]*model.Workspace),
	}
}

// Repositories 以 repository.Repositories 形式暴露
func (m *MemoryStores) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Dataset:   memDatasets{m},
		Workspace: memWorkspaces{m},
		Training:  memTraining{m},
		Feedback:  memFeedback{m},
	}
}

// TrainingRecords 返回已保存的训练记录
func (m *MemoryStores) TrainingRecords() []*model.TrainingMetadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.TrainingMetadata, len(m.training))
	copy(out, m.training)
	return out
}

// Dataset 直接读取数据集（不经过错误注入）
func (m *MemoryStores) Dataset(id string) *model.Dataset {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.datasets[id]
}

func (m *MemoryStores) fail() error {
	if m.Err != nil {
		return apperr.Storage(m.Err)
	}
	return nil
}

// ========== 数据集 ==========

type memDatasets struct{ m *MemoryStores }

func (s memDatasets) Create(ctx context.Context, ds *model.Dataset) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	if ds.ID == "" {
		ds.ID = uuid.New().String()
	}
	now := time.Now()
	ds.CreatedAt, ds.UpdatedAt = now, now
	cp := *ds
	s.m.datasets[ds.ID] = &cp
	return nil
}

func (s memDatasets) GetByID(ctx context.Context, id string) (*model.Dataset, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, err
	}
	ds, ok := s.m.datasets[id]
	if !ok {
		return nil, apperr.NotFound("dataset %s not found", id)
	}
	cp := *ds
	return &cp, nil
}

func (s memDatasets) List(ctx context.Context, offset, limit int) ([]*model.Dataset, int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, 0, err
	}
	all := make([]*model.Dataset, 0, len(s.m.datasets))
	for _, ds := range s.m.datasets {
		cp := *ds
		cp.InlineData = nil
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s memDatasets) Update(ctx context.Context, ds *model.Dataset) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	if _, ok := s.m.datasets[ds.ID]; !ok {
		return apperr.NotFound("dataset %s not found", ds.ID)
	}
	cp := *ds
	cp.UpdatedAt = time.Now()
	s.m.datasets[ds.ID] = &cp
	return nil
}

func (s memDatasets) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	if _, ok := s.m.datasets[id]; !ok {
		return apperr.NotFound("dataset %s not found", id)
	}
	delete(s.m.datasets, id)
	for wid, ws := range s.m.workspaces {
		if ws.DatasetID == id {
			delete(s.m.workspaces, wid)
		}
	}
	kept := s.m.training[:0]
	for _, r := range s.m.training {
		if r.DatasetID != id {
			kept = append(kept, r)
		}
	}
	s.m.training = kept
	return nil
}

func (s memDatasets) IncrementTrainingCount(ctx context.Context, id string, at time.Time) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	ds, ok := s.m.datasets[id]
	if !ok {
		return apperr.NotFound("dataset %s not found", id)
	}
	ds.TrainingCount++
	ds.LastTrainedAt = &at
	return nil
}

// ========== 工作区 ==========

type memWorkspaces struct{ m *MemoryStores }

func (s memWorkspaces) Save(ctx context.Context, ws *model.Workspace) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	now := time.Now()
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = now
	}
	ws.UpdatedAt = now
	cp := *ws
	s.m.workspaces[ws.ID] = &cp
	return nil
}

func (s memWorkspaces) GetByID(ctx context.Context, id string) (*model.Workspace, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, err
	}
	ws, ok := s.m.workspaces[id]
	if !ok {
		return nil, apperr.NotFound("workspace %s not found", id)
	}
	cp := *ws
	return &cp, nil
}

func (s memWorkspaces) ListByDataset(ctx context.Context, datasetID string) ([]*model.Workspace, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, err
	}
	var out []*model.Workspace
	for _, ws := range s.m.workspaces {
		if ws.DatasetID == datasetID {
			cp := *ws
			cp.Payload = nil
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s memWorkspaces) Delete(ctx context.Context, id string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	if _, ok := s.m.workspaces[id]; !ok {
		return apperr.NotFound("workspace %s not found", id)
	}
	delete(s.m.workspaces, id)
	return nil
}

// ========== 训练记录 ==========

type memTraining struct{ m *MemoryStores }

func (s memTraining) SaveBatch(ctx context.Context, records []*model.TrainingMetadata) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	for _, r := range records {
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		cp := *r
		s.m.training = append(s.m.training, &cp)
	}
	return nil
}

func (s memTraining) List(ctx context.Context, datasetID, workspaceName string) ([]*model.TrainingMetadata, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, err
	}
	var out []*model.TrainingMetadata
	for _, r := range s.m.training {
		if r.DatasetID != datasetID {
			continue
		}
		if workspaceName != "" && r.WorkspaceName != workspaceName {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

// ========== 评价 ==========

type memFeedback struct{ m *MemoryStores }

func (s memFeedback) Save(ctx context.Context, fb *model.Feedback) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return err
	}
	cp := *fb
	s.m.feedback = append(s.m.feedback, &cp)
	return nil
}

func (s memFeedback) Stats(ctx context.Context, datasetID string) (*model.FeedbackStats, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if err := s.m.fail(); err != nil {
		return nil, err
	}
	stats := &model.FeedbackStats{ByModel: make(map[string]float64)}
	sums := make(map[string][2]float64)
	var total float64
	for _, fb := range s.m.feedback {
		if datasetID != "" && fb.DatasetID != datasetID {
			continue
		}
		stats.Count++
		total += float64(fb.Rating)
		acc := sums[fb.ModelName]
		sums[fb.ModelName] = [2]float64{acc[0] + float64(fb.Rating), acc[1] + 1}
	}
	if stats.Count > 0 {
		stats.AverageRating = total / float64(stats.Count)
	}
	for name, acc := range sums {
		stats.ByModel[name] = acc[0] / acc[1]
	}
	return stats, nil
}

// ========== Blob 存储 ==========

// MemoryStorage 内存 Blob 存储
type MemoryStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

var _ file.Storage = (*MemoryStorage)(nil)

// NewMemoryStorage 创建内存 Blob 存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{blobs: make(map[string][]byte)}
}

// Save 保存内容
func (s *MemoryStorage) Save(ctx context.Context, req *file.SaveRequest) (string, error) {
	data, err := io.ReadAll(req.Reader)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("%s/%s", req.Prefix, uuid.New().String())
	s.mu.Lock()
	s.blobs[path] = data
	s.mu.Unlock()
	return path, nil
}

// Get 获取内容
func (s *MemoryStorage) Get(ctx context.Context, filePath string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[filePath]
	if !ok {
		return nil, apperr.NotFound("file %s not found", filePath)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete 删除内容
func (s *MemoryStorage) Delete(ctx context.Context, filePath string) error {
	s.mu.Lock()
	delete(s.blobs, filePath)
	s.mu.Unlock()
	return nil
}

// GetURL 内存存储没有访问地址
func (s *MemoryStorage) GetURL(filePath string) string {
	return "mem://" + filePath
}

// Has 判断路径是否存在
func (s *MemoryStorage) Has(filePath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[filePath]
	return ok
}

// Len 已保存的对象数量
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}
