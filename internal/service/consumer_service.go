package service

import (
	"context"
	"encoding/json"
	"fmt"

	"ai-docquery-be/internal/dto"
	"ai-docquery-be/internal/model"
	"ai-docquery-be/internal/pkg/logger"
	"ai-docquery-be/internal/repository/contract"
	"ai-docquery-be/internal/vectorstore"
	"ai-docquery-be/pkg/embedding"
	"ai-docquery-be/pkg/events"
	pktNats "ai-docquery-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the embed topic: for each ingested document it
// embeds the chunks in one batch, upserts them into the vector store, and
// finalizes the document status.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	docRepo           contract.DocumentRepository
	store             vectorstore.Store
	embeddingProvider embedding.Provider
	eventPublisher    *pktNats.Publisher
	log               logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	docRepo contract.DocumentRepository,
	store vectorstore.Store,
	embeddingProvider embedding.Provider,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		docRepo:           docRepo,
		store:             store,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
		log:               log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedChunksMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.log.Error("consumer", "failed to unmarshal message", map[string]interface{}{
			"error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	cs.log.Info("consumer", "processing document", map[string]interface{}{
		"document_id": payload.DocumentId,
		"chunks":      len(payload.Chunks),
	})

	if len(payload.Chunks) == 0 {
		cs.finalize(ctx, payload.DocumentId, 0, nil)
		msg.Ack()
		return
	}

	texts := make([]string, 0, len(payload.Chunks))
	for _, c := range payload.Chunks {
		texts = append(texts, c.Text)
	}

	res, err := cs.embeddingProvider.Embed(ctx, texts)
	if err != nil {
		cs.finalize(ctx, payload.DocumentId, 0, err)
		msg.Ack()
		return
	}
	if len(res.Vectors) != len(payload.Chunks) {
		// A count mismatch is almost always deterministic, so retrying the
		// message would loop. Record the failure instead.
		cs.finalize(ctx, payload.DocumentId, 0, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(payload.Chunks), len(res.Vectors)))
		msg.Ack()
		return
	}

	records := make([]vectorstore.VectorRecord, 0, len(payload.Chunks))
	for i, c := range payload.Chunks {
		records = append(records, vectorstore.VectorRecord{
			Id:     ChunkId(payload.DocumentId, c.ChunkIndex),
			Vector: res.Vectors[i],
			Text:   c.Text,
			Metadata: map[string]interface{}{
				"document_id": payload.DocumentId,
				"filename":    payload.Filename,
				"file_type":   payload.FileType,
				"chunk_index": c.ChunkIndex,
			},
		})
	}

	if _, err := cs.store.Upsert(ctx, records); err != nil {
		cs.finalize(ctx, payload.DocumentId, 0, err)
		msg.Ack()
		return
	}

	cs.finalize(ctx, payload.DocumentId, len(records), nil)
	msg.Ack()
}

// finalize records the terminal status of a document and emits the matching
// lifecycle event.
func (cs *consumerService) finalize(ctx context.Context, documentId string, chunkCount int, procErr error) {
	status := model.DocumentStatusCompleted
	errMessage := ""
	eventType := events.DocumentCompleted

	if procErr != nil {
		status = model.DocumentStatusFailed
		errMessage = procErr.Error()
		eventType = events.DocumentFailed
		cs.log.Error("consumer", "document processing failed", map[string]interface{}{
			"document_id": documentId,
			"error":       errMessage,
		})
	}

	if err := cs.docRepo.UpdateStatus(ctx, documentId, status, chunkCount, errMessage); err != nil {
		cs.log.Error("consumer", "failed to update document status", map[string]interface{}{
			"document_id": documentId,
			"error":       err.Error(),
		})
	}

	if cs.eventPublisher != nil {
		evt := events.NewDocumentEvent(eventType, documentId, map[string]interface{}{
			"chunk_count": chunkCount,
		})
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.log.Warn("consumer", "failed to publish event", map[string]interface{}{
				"event": eventType,
				"error": err.Error(),
			})
		}
	}

	if procErr == nil {
		cs.log.Info("consumer", "document processed", map[string]interface{}{
			"document_id": documentId,
			"chunks":      chunkCount,
		})
	}
}
