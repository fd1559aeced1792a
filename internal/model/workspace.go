package model

import (
	"time"

	"gorm.io/datatypes"
)

// Workspace 保存的分析会话快照
type Workspace struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	DatasetID   string         `json:"dataset_id" gorm:"index;size:36"`
	Name        string         `json:"name" gorm:"size:255"`
	StorageType StorageType    `json:"storage_type" gorm:"size:20"` // direct(inline), blob
	Payload     datatypes.JSON `json:"-"`
	BlobPath    string         `json:"blob_path,omitempty" gorm:"size:512"`
	SizeBytes   int64          `json:"size_bytes"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName 指定表名
func (Workspace) TableName() string {
	return "workspaces"
}
