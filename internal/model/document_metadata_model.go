package model

import (
	"time"
)

const (
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// DocumentMetadata tracks one ingested document. Created when ingestion
// starts, mutated once on completion or failure, never deleted by this
// service.
type DocumentMetadata struct {
	DocumentId string    `gorm:"column:document_id;primaryKey"`
	Filename   string    `gorm:"type:text"`
	FileType   string    `gorm:"type:text"`
	FileSize   int64     `gorm:"default:0"`
	ChunkCount int       `gorm:"default:0"`
	Status     string    `gorm:"type:text;index"` // processing | completed | failed
	Error      string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (DocumentMetadata) TableName() string {
	return "document_metadata"
}
