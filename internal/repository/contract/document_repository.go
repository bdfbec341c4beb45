package contract

import (
	"context"

	"ai-docquery-be/internal/model"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *model.DocumentMetadata) error
	UpdateStatus(ctx context.Context, documentId, status string, chunkCount int, errMessage string) error
	FindById(ctx context.Context, documentId string) (*model.DocumentMetadata, error)
	FindAll(ctx context.Context, limit, offset int) ([]*model.DocumentMetadata, error)
	Count(ctx context.Context) (int64, error)
}
