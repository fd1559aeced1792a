package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/model"
)

// FeedbackRequest 用户评价
type FeedbackRequest struct {
	DatasetID     string `json:"dataset_id"`
	WorkspaceName string `json:"workspace_name"`
	ModelName     string `json:"model_name"`
	Rating        int    `json:"rating"`
	Comment       string `json:"comment"`
}

// SubmitFeedback 保存对模型结果的评价
func (s *Service) SubmitFeedback(ctx context.Context, req *FeedbackRequest) (*model.Feedback, error) {
	if req.DatasetID == "" {
		return nil, apperr.Validation("dataset_id is required")
	}
	if strings.TrimSpace(req.ModelName) == "" {
		return nil, apperr.Validation("model_name is required")
	}
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5, got %d", req.Rating)
	}
	if _, err := s.Repo.Dataset.GetByID(ctx, req.DatasetID); err != nil {
		return nil, err
	}

	workspace := strings.TrimSpace(req.WorkspaceName)
	if workspace == "" {
		workspace = DefaultWorkspace
	}
	fb := &model.Feedback{
		ID:            uuid.New().String(),
		DatasetID:     req.DatasetID,
		WorkspaceName: workspace,
		ModelName:     strings.TrimSpace(req.ModelName),
		Rating:        req.Rating,
		Comment:       strings.TrimSpace(req.Comment),
		CreatedAt:     time.Now(),
	}
	if err := s.Repo.Feedback.Save(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// FeedbackStats 评价统计，datasetID 为空时统计全部
func (s *Service) FeedbackStats(ctx context.Context, datasetID string) (*model.FeedbackStats, error) {
	return s.Repo.Feedback.Stats(ctx, datasetID)
}

// TrainingHistory 数据集的训练记录，workspace 为空时返回全部工作区
func (s *Service) TrainingHistory(ctx context.Context, datasetID, workspace string) ([]*model.TrainingMetadata, error) {
	if _, err := s.Repo.Dataset.GetByID(ctx, datasetID); err != nil {
		return nil, err
	}
	records, err := s.Repo.Training.List(ctx, datasetID, workspace)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*model.TrainingMetadata{}
	}
	return records, nil
}
