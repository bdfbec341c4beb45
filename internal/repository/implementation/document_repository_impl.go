package implementation

import (
	"context"
	"errors"

	"ai-docquery-be/internal/model"
	"ai-docquery-be/internal/repository/contract"

	"gorm.io/gorm"
)

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) contract.DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

func (r *DocumentRepositoryImpl) Create(ctx context.Context, doc *model.DocumentMetadata) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *DocumentRepositoryImpl) UpdateStatus(ctx context.Context, documentId, status string, chunkCount int, errMessage string) error {
	updates := map[string]interface{}{
		"status":      status,
		"chunk_count": chunkCount,
		"error":       errMessage,
	}
	return r.db.WithContext(ctx).
		Model(&model.DocumentMetadata{}).
		Where("document_id = ?", documentId).
		Updates(updates).Error
}

func (r *DocumentRepositoryImpl) FindById(ctx context.Context, documentId string) (*model.DocumentMetadata, error) {
	var doc model.DocumentMetadata
	err := r.db.WithContext(ctx).Where("document_id = ?", documentId).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) FindAll(ctx context.Context, limit, offset int) ([]*model.DocumentMetadata, error) {
	if limit <= 0 {
		limit = 50
	}
	var docs []*model.DocumentMetadata
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepositoryImpl) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.DocumentMetadata{}).Count(&count).Error
	return count, err
}
