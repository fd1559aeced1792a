package model

import "time"

// Feedback 用户对模型结果的评价
type Feedback struct {
	ID            string    `json:"id" gorm:"primaryKey;size:36"`
	DatasetID     string    `json:"dataset_id" gorm:"index;size:36"`
	WorkspaceName string    `json:"workspace_name" gorm:"size:255"`
	ModelName     string    `json:"model_name" gorm:"index;size:100"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 指定表名
func (Feedback) TableName() string {
	return "feedback"
}

// FeedbackStats 评价统计
type FeedbackStats struct {
	Count         int64              `json:"count"`
	AverageRating float64            `json:"average_rating"`
	ByModel       map[string]float64 `json:"by_model"`
}
