package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-docquery-be/internal/dto"
	"ai-docquery-be/internal/model"
	"ai-docquery-be/internal/pkg/logger"
	"ai-docquery-be/internal/vectorstore"
	"ai-docquery-be/pkg/embedding"
)

type memoryDocRepo struct {
	mu   sync.Mutex
	docs map[string]*model.DocumentMetadata
}

func newMemoryDocRepo() *memoryDocRepo {
	return &memoryDocRepo{docs: map[string]*model.DocumentMetadata{}}
}

func (r *memoryDocRepo) Create(ctx context.Context, doc *model.DocumentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.DocumentId] = &cp
	return nil
}

func (r *memoryDocRepo) UpdateStatus(ctx context.Context, documentId, status string, chunkCount int, errMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentId]
	if !ok {
		return nil
	}
	doc.Status = status
	doc.ChunkCount = chunkCount
	doc.Error = errMessage
	return nil
}

func (r *memoryDocRepo) FindById(ctx context.Context, documentId string) (*model.DocumentMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[documentId]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (r *memoryDocRepo) FindAll(ctx context.Context, limit, offset int) ([]*model.DocumentMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []*model.DocumentMetadata
	for _, doc := range r.docs {
		cp := *doc
		docs = append(docs, &cp)
	}
	return docs, nil
}

func (r *memoryDocRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.docs)), nil
}

type memoryVectorStore struct {
	mu      sync.Mutex
	records map[string]vectorstore.VectorRecord
	failing bool
}

func newMemoryVectorStore() *memoryVectorStore {
	return &memoryVectorStore{records: map[string]vectorstore.VectorRecord{}}
}

func (s *memoryVectorStore) Upsert(ctx context.Context, records []vectorstore.VectorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return 0, errors.New("upsert rejected")
	}
	for _, r := range records {
		s.records[r.Id] = r
	}
	return len(records), nil
}

func (s *memoryVectorStore) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]vectorstore.VectorRecord, error) {
	return nil, nil
}

func (s *memoryVectorStore) Delete(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryVectorStore) Stats(ctx context.Context) (*vectorstore.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &vectorstore.Stats{TotalVectors: int64(len(s.records)), Dimensions: 3}, nil
}

type stubEmbedder struct {
	err   error
	short bool // drop the last vector to desync counts
}

func (e *stubEmbedder) Embed(ctx context.Context, texts []string) (*embedding.Result, error) {
	if e.err != nil {
		return nil, e.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i), 0.5, 0.5}
	}
	if e.short && len(vectors) > 0 {
		vectors = vectors[:len(vectors)-1]
	}
	return &embedding.Result{Vectors: vectors, TotalTokens: len(texts) * 10}, nil
}

type servicesFixture struct {
	docService IDocumentService
	repo       *memoryDocRepo
	store      *memoryVectorStore
}

func newServicesFixture(t *testing.T, embedder embedding.Provider) *servicesFixture {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	t.Cleanup(func() { pubSub.Close() })

	repo := newMemoryDocRepo()
	store := newMemoryVectorStore()
	log := logger.NewNopLogger()
	topic := "embed-test"

	consumer := NewConsumerService(pubSub, topic, repo, store, embedder, nil, log)
	require.NoError(t, consumer.Consume(context.Background()))

	publisher := NewPublisherService(topic, pubSub)
	docService := NewDocumentService(repo, store, publisher, nil, log, 100, 20)

	return &servicesFixture{
		docService: docService,
		repo:       repo,
		store:      store,
	}
}

func waitForStatus(t *testing.T, repo *memoryDocRepo, documentId, want string) *model.DocumentMetadata {
	t.Helper()
	var doc *model.DocumentMetadata
	require.Eventually(t, func() bool {
		doc, _ = repo.FindById(context.Background(), documentId)
		return doc != nil && doc.Status == want
	}, 3*time.Second, 10*time.Millisecond)
	return doc
}

func TestDocumentIngestToCompleted(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{})

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "handbook.txt",
		FileType: "txt",
		Content:  "First rule here. Second rule follows. Third rule closes the set. A fourth sentence to force more than one chunk out of the splitter.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.DocumentId)
	assert.Equal(t, model.DocumentStatusProcessing, res.Status)
	assert.Positive(t, res.ChunkCount)

	doc := waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusCompleted)
	assert.Equal(t, res.ChunkCount, doc.ChunkCount)
	assert.Empty(t, doc.Error)

	f.store.mu.Lock()
	stored := len(f.store.records)
	var sample vectorstore.VectorRecord
	for _, r := range f.store.records {
		sample = r
		break
	}
	f.store.mu.Unlock()

	assert.Equal(t, res.ChunkCount, stored)
	assert.Equal(t, res.DocumentId, sample.Metadata["document_id"])
	assert.Equal(t, "handbook.txt", sample.Metadata["filename"])
	assert.NotEmpty(t, sample.Vector)
}

func TestDocumentIngestEmbeddingFailureMarksFailed(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{err: errors.New("embedding backend down")})

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "broken.txt",
		Content:  "Some content that will never be embedded.",
	})
	require.NoError(t, err)

	doc := waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusFailed)
	assert.Contains(t, doc.Error, "embedding backend down")
	assert.Zero(t, doc.ChunkCount)
}

func TestDocumentIngestEmbeddingCountMismatchMarksFailed(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{short: true})

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "desync.txt",
		Content:  "One sentence to embed. Another sentence that the provider will silently drop.",
	})
	require.NoError(t, err)

	// A deterministic mismatch must land in a terminal failed state instead
	// of being redelivered forever.
	doc := waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusFailed)
	assert.Contains(t, doc.Error, "embedding count mismatch")

	f.store.mu.Lock()
	stored := len(f.store.records)
	f.store.mu.Unlock()
	assert.Zero(t, stored)
}

func TestDocumentIngestUpsertFailureMarksFailed(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{})
	f.store.failing = true

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "rejected.txt",
		Content:  "Content whose vectors the store refuses to accept.",
	})
	require.NoError(t, err)

	doc := waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusFailed)
	assert.Contains(t, doc.Error, "upsert rejected")
}

func TestDocumentDeleteRemovesVectors(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{})

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "doomed.txt",
		Content:  "Sentence one lives here. Sentence two lives here. Sentence three lives here too, stretching things out a little further.",
	})
	require.NoError(t, err)
	waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusCompleted)

	del, err := f.docService.Delete(context.Background(), res.DocumentId)
	require.NoError(t, err)
	assert.Equal(t, res.ChunkCount, del.VectorsDeleted)

	stats, err := f.docService.IndexStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalVectors)
}

func TestDocumentDeleteUnknownIdReturnsNil(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{})

	del, err := f.docService.Delete(context.Background(), "no-such-doc")
	require.NoError(t, err)
	assert.Nil(t, del)
}

func TestDocumentShowAndList(t *testing.T) {
	f := newServicesFixture(t, &stubEmbedder{})

	res, err := f.docService.Ingest(context.Background(), &dto.IngestDocumentRequest{
		Filename: "listed.txt",
		Content:  "A single short document.",
	})
	require.NoError(t, err)
	waitForStatus(t, f.repo, res.DocumentId, model.DocumentStatusCompleted)

	shown, err := f.docService.Show(context.Background(), res.DocumentId)
	require.NoError(t, err)
	require.NotNil(t, shown)
	assert.Equal(t, "listed.txt", shown.Filename)

	missing, err := f.docService.Show(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := f.docService.List(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Documents, 1)
}
