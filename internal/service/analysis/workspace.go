package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/service/file"
)

const workspacePrefix = "workspaces"

// chartKeys 保存工作区时图表保留的字段，图表数据可由分析结果重建
var chartKeys = []string{"id", "type", "chart_type", "title", "x", "y", "columns", "config", "reason"}

// SaveStateRequest 保存工作区请求
type SaveStateRequest struct {
	DatasetID     string                 `json:"dataset_id"`
	WorkspaceName string                 `json:"workspace_name"`
	State         map[string]interface{} `json:"state"`
}

// WorkspaceState 工作区及其内容
type WorkspaceState struct {
	*model.Workspace
	State map[string]interface{} `json:"state"`
}

// SaveState 保存工作区快照，同一数据集下同名工作区会被覆盖
// 编码后超过内联阈值的快照存入 Blob
func (s *Service) SaveState(ctx context.Context, req *SaveStateRequest) (*model.Workspace, error) {
	name := strings.TrimSpace(req.WorkspaceName)
	if req.DatasetID == "" {
		return nil, apperr.Validation("dataset_id is required")
	}
	if name == "" {
		name = DefaultWorkspace
	}
	if _, err := s.Repo.Dataset.GetByID(ctx, req.DatasetID); err != nil {
		return nil, err
	}

	state := trimState(req.State, s.cfg.ChatHistoryLimit)
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, apperr.Validation("state is not serializable: %v", err)
	}

	ws := &model.Workspace{
		ID:          uuid.New().String(),
		DatasetID:   req.DatasetID,
		Name:        name,
		StorageType: model.StorageTypeDirect,
		SizeBytes:   int64(len(payload)),
	}
	var oldBlob string
	existing, err := s.Repo.Workspace.ListByDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.Name == name {
			ws.ID, ws.CreatedAt, oldBlob = e.ID, e.CreatedAt, e.BlobPath
			break
		}
	}

	if ws.SizeBytes > s.cfg.InlineThreshold {
		path, err := s.Storage.Save(ctx, &file.SaveRequest{
			FileName:    ws.ID + ".json",
			ContentType: "application/json",
			Size:        ws.SizeBytes,
			Reader:      bytes.NewReader(payload),
			Prefix:      workspacePrefix,
		})
		if err != nil {
			return nil, apperr.Storage(fmt.Errorf("failed to store workspace blob: %w", err))
		}
		ws.StorageType = model.StorageTypeBlob
		ws.BlobPath = path
	} else {
		ws.Payload = datatypes.JSON(payload)
	}

	if err := s.Repo.Workspace.Save(ctx, ws); err != nil {
		return nil, err
	}
	if oldBlob != "" && oldBlob != ws.BlobPath {
		if err := s.Storage.Delete(ctx, oldBlob); err != nil {
			s.logger.Warnf("failed to delete previous workspace blob %s: %v", oldBlob, err)
		}
	}

	s.logger.Infof("workspace %s (%s) saved for dataset %s: %d bytes, storage=%s", ws.ID, ws.Name, ws.DatasetID, ws.SizeBytes, ws.StorageType)
	ws.Payload = nil
	return ws, nil
}

// LoadState 读取工作区内容
func (s *Service) LoadState(ctx context.Context, id string) (*WorkspaceState, error) {
	ws, err := s.Repo.Workspace.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	raw := []byte(ws.Payload)
	if ws.StorageType == model.StorageTypeBlob {
		raw, err = file.ReadAll(ctx, s.Storage, ws.BlobPath)
		if err != nil {
			if apperr.IsNotFound(err) {
				return nil, apperr.NotFound("workspace %s content not found", id)
			}
			return nil, apperr.Storage(err)
		}
	}

	state := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, apperr.Storage(fmt.Errorf("failed to decode workspace %s: %w", id, err))
		}
	}
	ws.Payload = nil
	return &WorkspaceState{Workspace: ws, State: state}, nil
}

// ListStates 列出数据集的工作区
func (s *Service) ListStates(ctx context.Context, datasetID string) ([]*model.Workspace, error) {
	list, err := s.Repo.Workspace.ListByDataset(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*model.Workspace{}
	}
	return list, nil
}

// DeleteState 删除工作区及其 Blob
func (s *Service) DeleteState(ctx context.Context, id string) error {
	ws, err := s.Repo.Workspace.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Workspace.Delete(ctx, id); err != nil {
		return err
	}
	if ws.BlobPath != "" {
		if err := s.Storage.Delete(ctx, ws.BlobPath); err != nil {
			s.logger.Warnf("failed to delete workspace blob %s: %v", ws.BlobPath, err)
		}
	}
	return nil
}

// trimState 图表只保留描述字段，聊天记录只保留最近 limit 条
func trimState(state map[string]interface{}, limit int) map[string]interface{} {
	out := make(map[string]interface{}, len(state)+1)
	for k, v := range state {
		out[k] = v
	}
	for _, key := range []string{"charts", "auto_charts"} {
		if charts, ok := out[key].([]interface{}); ok {
			out[key] = trimCharts(charts)
		}
	}
	if history, ok := out["chat_history"].([]interface{}); ok && len(history) > limit {
		out["chat_history"] = history[len(history)-limit:]
	}
	out["saved_at"] = time.Now().UTC().Format(time.RFC3339)
	return out
}

func trimCharts(charts []interface{}) []interface{} {
	out := make([]interface{}, 0, len(charts))
	for _, c := range charts {
		m, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		kept := make(map[string]interface{}, len(chartKeys))
		for _, k := range chartKeys {
			if v, ok := m[k]; ok {
				kept[k] = v
			}
		}
		out = append(out, kept)
	}
	return out
}
