package model

import (
	"time"

	"gorm.io/datatypes"
)

// TrainingMetadata 单个模型的训练记录
type TrainingMetadata struct {
	ID              string                                 `json:"id" gorm:"primaryKey;size:36"`
	DatasetID       string                                 `json:"dataset_id" gorm:"index:idx_training_ds_ws;size:36"`
	WorkspaceName   string                                 `json:"workspace_name" gorm:"index:idx_training_ds_ws;size:255"`
	Target          string                                 `json:"target" gorm:"size:255"`
	Features        datatypes.JSONSlice[string]            `json:"features"`
	ModelName       string                                 `json:"model_name" gorm:"size:100"`
	ProblemType     string                                 `json:"problem_type" gorm:"size:20"`
	Hyperparameters datatypes.JSONMap                      `json:"hyperparameters"`
	Metrics         datatypes.JSONType[map[string]float64] `json:"metrics"`
	TrainingTime    float64                                `json:"training_time"`
	CreatedAt       time.Time                              `json:"created_at"`
}

// TableName 指定表名
func (TrainingMetadata) TableName() string {
	return "training_metadata"
}
