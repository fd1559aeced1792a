package model

import (
	"time"

	"gorm.io/datatypes"
)

// StorageType 数据存储方式
type StorageType string

const (
	StorageTypeDirect StorageType = "direct" // 行数据内联在记录中
	StorageTypeBlob   StorageType = "blob"   // 行数据存放在 Blob 存储
)

// Dataset 上传的表格数据集
type Dataset struct {
	ID            string                                `json:"id" gorm:"primaryKey;size:36"`
	Name          string                                `json:"name" gorm:"index;size:255"`
	FileName      string                                `json:"file_name" gorm:"size:255"`
	RowCount      int                                   `json:"row_count"`
	ColumnCount   int                                   `json:"column_count"`
	Columns       datatypes.JSONSlice[string]           `json:"columns"`
	DTypes        datatypes.JSONType[map[string]string] `json:"dtypes"`
	StorageType   StorageType                           `json:"storage_type" gorm:"size:20;default:direct"`
	BlobPath      string                                `json:"gridfs_file_id,omitempty" gorm:"size:512"`
	InlineData    datatypes.JSON                        `json:"-"`
	SizeBytes     int64                                 `json:"size_bytes"`
	TrainingCount int                                   `json:"training_count" gorm:"default:0"`
	CreatedAt     time.Time                             `json:"created_at"`
	UpdatedAt     time.Time                             `json:"updated_at"`
	LastTrainedAt *time.Time                            `json:"last_trained_at,omitempty"`
}

// TableName 指定表名
func (Dataset) TableName() string {
	return "datasets"
}

// ColumnTypes 返回列类型提示
func (d *Dataset) ColumnTypes() map[string]string {
	return d.DTypes.Data()
}
