package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"ai-docquery-be/internal/chunker"
	"ai-docquery-be/internal/dto"
	"ai-docquery-be/internal/model"
	"ai-docquery-be/internal/pkg/logger"
	"ai-docquery-be/internal/repository/contract"
	"ai-docquery-be/internal/vectorstore"
	"ai-docquery-be/pkg/events"
	pktNats "ai-docquery-be/pkg/nats"
)

type IDocumentService interface {
	Ingest(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error)
	Show(ctx context.Context, documentId string) (*dto.DocumentResponse, error)
	List(ctx context.Context, limit, offset int) (*dto.ListDocumentsResponse, error)
	Delete(ctx context.Context, documentId string) (*dto.DeleteDocumentResponse, error)
	IndexStats(ctx context.Context) (*dto.IndexStatsResponse, error)
}

type documentService struct {
	docRepo          contract.DocumentRepository
	store            vectorstore.Store
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	log              logger.ILogger
	chunkSize        int
	chunkOverlap     int
}

func NewDocumentService(
	docRepo contract.DocumentRepository,
	store vectorstore.Store,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
	chunkSize, chunkOverlap int,
) IDocumentService {
	return &documentService{
		docRepo:          docRepo,
		store:            store,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		log:              log,
		chunkSize:        chunkSize,
		chunkOverlap:     chunkOverlap,
	}
}

// ChunkId derives the stable vector id for one chunk of a document. Ids are
// regenerated from document id and chunk count on delete, so the scheme must
// stay deterministic.
func ChunkId(documentId string, chunkIndex int) string {
	return fmt.Sprintf("%s-%d", documentId, chunkIndex)
}

func deriveDocumentId(filename string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", filename, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])[:16]
}

// Ingest cleans and chunks the document, records it as processing, and hands
// the chunks to the embedding consumer. Embedding and upserting happen
// asynchronously; callers poll Show for the final status.
func (s *documentService) Ingest(ctx context.Context, req *dto.IngestDocumentRequest) (*dto.IngestDocumentResponse, error) {
	cleaned := chunker.CleanText(req.Content)
	chunks := chunker.Chunk(cleaned, s.chunkSize, s.chunkOverlap)

	documentId := deriveDocumentId(req.Filename)

	doc := &model.DocumentMetadata{
		DocumentId: documentId,
		Filename:   req.Filename,
		FileType:   req.FileType,
		FileSize:   int64(len(req.Content)),
		ChunkCount: 0,
		Status:     model.DocumentStatusProcessing,
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	payload := dto.PublishEmbedChunksMessage{
		DocumentId: documentId,
		Filename:   req.Filename,
		FileType:   req.FileType,
		Chunks:     make([]dto.ChunkPayload, 0, len(chunks)),
	}
	for _, c := range chunks {
		payload.Chunks = append(payload.Chunks, dto.ChunkPayload{
			Text:       c.Text,
			ChunkIndex: c.ChunkIndex,
			StartChar:  c.StartChar,
			EndChar:    c.EndChar,
		})
	}

	msgJson, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if err := s.publisherService.Publish(ctx, msgJson); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.NewDocumentEvent(events.DocumentReceived, documentId, map[string]interface{}{
		"filename":    req.Filename,
		"chunk_count": len(chunks),
	}))

	s.log.Info("document", "document queued for embedding", map[string]interface{}{
		"document_id": documentId,
		"filename":    req.Filename,
		"chunks":      len(chunks),
	})

	return &dto.IngestDocumentResponse{
		DocumentId: documentId,
		ChunkCount: len(chunks),
		Status:     model.DocumentStatusProcessing,
	}, nil
}

func (s *documentService) Show(ctx context.Context, documentId string) (*dto.DocumentResponse, error) {
	doc, err := s.docRepo.FindById(ctx, documentId)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return toDocumentResponse(doc), nil
}

func (s *documentService) List(ctx context.Context, limit, offset int) (*dto.ListDocumentsResponse, error) {
	docs, err := s.docRepo.FindAll(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.docRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	res := &dto.ListDocumentsResponse{
		Documents: make([]*dto.DocumentResponse, 0, len(docs)),
		Total:     total,
	}
	for _, doc := range docs {
		res.Documents = append(res.Documents, toDocumentResponse(doc))
	}
	return res, nil
}

// Delete removes the document's vectors from the store. Vector ids are
// regenerated from the recorded chunk count. The metadata row stays behind as
// an audit record.
func (s *documentService) Delete(ctx context.Context, documentId string) (*dto.DeleteDocumentResponse, error) {
	doc, err := s.docRepo.FindById(ctx, documentId)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	ids := make([]string, 0, doc.ChunkCount)
	for i := 0; i < doc.ChunkCount; i++ {
		ids = append(ids, ChunkId(documentId, i))
	}

	deleted := 0
	if len(ids) > 0 {
		deleted, err = s.store.Delete(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	s.publishEvent(ctx, events.NewDocumentEvent(events.DocumentDeleted, documentId, map[string]interface{}{
		"vectors_deleted": deleted,
	}))

	return &dto.DeleteDocumentResponse{
		DocumentId:     documentId,
		VectorsDeleted: deleted,
	}, nil
}

func (s *documentService) IndexStats(ctx context.Context) (*dto.IndexStatsResponse, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.IndexStatsResponse{
		TotalVectors: stats.TotalVectors,
		Dimensions:   stats.Dimensions,
		Extra:        stats.Extra,
	}, nil
}

// publishEvent is fire-and-forget: the event bus is auxiliary and never fails
// a request.
func (s *documentService) publishEvent(ctx context.Context, evt events.BaseEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.log.Warn("document", "failed to publish event", map[string]interface{}{
			"event": evt.Type,
			"error": err.Error(),
		})
	}
}

func toDocumentResponse(doc *model.DocumentMetadata) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		DocumentId: doc.DocumentId,
		Filename:   doc.Filename,
		FileType:   doc.FileType,
		FileSize:   doc.FileSize,
		ChunkCount: doc.ChunkCount,
		Status:     doc.Status,
		Error:      doc.Error,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}
