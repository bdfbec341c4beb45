package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinecone is an httptest-backed stand-in for the managed ANN service.
type fakePinecone struct {
	vectors     map[string]pineconeVector
	upsertCalls []int // batch sizes per upsert request
}

func newFakePinecone() *fakePinecone {
	return &fakePinecone{vectors: make(map[string]pineconeVector)}
}

func (f *fakePinecone) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		var req pineconeUpsertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.upsertCalls = append(f.upsertCalls, len(req.Vectors))
		for _, v := range req.Vectors {
			f.vectors[v.Id] = v
		}
		fmt.Fprintf(w, `{"upsertedCount":%d}`, len(req.Vectors))
	})

	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var req pineconeQueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var matches []pineconeMatch
		for id, v := range f.vectors {
			keep := true
			for fk, fv := range req.Filter {
				if got, _ := v.Metadata[fk].(string); got != fv {
					keep = false
					break
				}
			}
			if !keep {
				continue
			}
			// Score from the first stored component, deterministic enough
			// for ordering assertions.
			score := 0.5
			if len(v.Values) > 0 {
				score = float64(v.Values[0])
			}
			matches = append(matches, pineconeMatch{Id: id, Score: score, Metadata: v.Metadata})
		}
		// naive descending sort
		for i := 0; i < len(matches); i++ {
			for j := i + 1; j < len(matches); j++ {
				if matches[j].Score > matches[i].Score {
					matches[i], matches[j] = matches[j], matches[i]
				}
			}
		}
		if req.TopK > 0 && len(matches) > req.TopK {
			matches = matches[:req.TopK]
		}
		json.NewEncoder(w).Encode(pineconeQueryResponse{Matches: matches})
	})

	mux.HandleFunc("/vectors/delete", func(w http.ResponseWriter, r *http.Request) {
		var req pineconeDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, id := range req.Ids {
			delete(f.vectors, id)
		}
		w.Write([]byte(`{}`))
	})

	mux.HandleFunc("/describe_index_stats", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"totalVectorCount":%d,"dimension":8,"namespaces":{"":{}}}`, len(f.vectors))
	})

	return mux
}

func newTestStore(t *testing.T) (*PineconeStore, *fakePinecone, func()) {
	t.Helper()
	fake := newFakePinecone()
	srv := httptest.NewServer(fake.handler())
	store := NewPineconeStore(PineconeConfig{
		ApiKey:    "test-key",
		IndexName: "test-index",
		IndexHost: srv.URL,
	})
	return store, fake, srv.Close
}

func makeRecords(n int) []VectorRecord {
	records := make([]VectorRecord, n)
	for i := range records {
		records[i] = VectorRecord{
			Id:     fmt.Sprintf("chunk-%03d", i),
			Vector: []float32{float32(i) / float32(n), 0.1},
			Text:   fmt.Sprintf("chunk text %d", i),
			Metadata: map[string]interface{}{
				"document_id": "doc-1",
				"department":  "HR",
			},
		}
	}
	return records
}

func TestPineconeUpsertBatches(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	count, err := store.Upsert(context.Background(), makeRecords(250))
	require.NoError(t, err)
	assert.Equal(t, 250, count)
	// 250 records at a batch limit of 100 means three calls.
	assert.Equal(t, []int{100, 100, 50}, fake.upsertCalls)
	assert.Len(t, fake.vectors, 250)
}

func TestPineconeUpsertReplacesById(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	ctx := context.Background()
	records := makeRecords(3)
	_, err := store.Upsert(ctx, records)
	require.NoError(t, err)

	records[1].Text = "replacement text"
	_, err = store.Upsert(ctx, records[1:2])
	require.NoError(t, err)

	assert.Len(t, fake.vectors, 3, "re-upsert must not create a duplicate")
	assert.Equal(t, "replacement text", fake.vectors["chunk-001"].Metadata["text"])

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalVectors)
}

func TestPineconeUpsertTruncatesMetadataText(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	long := strings.Repeat("x", 2500)
	_, err := store.Upsert(context.Background(), []VectorRecord{
		{Id: "big", Vector: []float32{0.1}, Text: long},
	})
	require.NoError(t, err)

	stored, _ := fake.vectors["big"].Metadata["text"].(string)
	assert.Len(t, stored, pineconeMetadataTextCap)
}

func TestPineconeSearchOrderAndFilter(t *testing.T) {
	store, _, done := newTestStore(t)
	defer done()

	ctx := context.Background()
	_, err := store.Upsert(ctx, []VectorRecord{
		{Id: "low", Vector: []float32{0.2}, Text: "low", Metadata: map[string]interface{}{"department": "HR"}},
		{Id: "high", Vector: []float32{0.9}, Text: "high", Metadata: map[string]interface{}{"department": "HR"}},
		{Id: "other", Vector: []float32{0.95}, Text: "other", Metadata: map[string]interface{}{"department": "Legal"}},
	})
	require.NoError(t, err)

	results, err := store.Search(ctx, []float32{0.5}, 10, map[string]string{"department": "HR"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high", results[0].Id)
	assert.Equal(t, "low", results[1].Id)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Empty(t, results[0].Vector, "search results must not carry stored vectors")
}

func TestPineconeDelete(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	ctx := context.Background()
	_, err := store.Upsert(ctx, makeRecords(5))
	require.NoError(t, err)

	// The backend reports no deletion count, so Delete echoes the request
	// size even when some ids never existed.
	count, err := store.Delete(ctx, []string{"chunk-000", "chunk-001", "never-existed"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Len(t, fake.vectors, 3)

	count, err = store.Delete(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPineconeUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // closed server: connection refused

	store := NewPineconeStore(PineconeConfig{
		ApiKey:    "test-key",
		IndexName: "test-index",
		IndexHost: srv.URL,
	})

	_, err := store.Search(context.Background(), []float32{0.1}, 5, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "connectivity failures must wrap ErrUnavailable")
}

func TestFactorySelectsBackend(t *testing.T) {
	store, err := New(Config{Kind: KindPinecone})
	require.NoError(t, err)
	assert.IsType(t, &PineconeStore{}, store)

	store, err = New(Config{Kind: KindPgVector})
	require.NoError(t, err)
	assert.IsType(t, &PgVectorStore{}, store)

	_, err = New(Config{Kind: "chroma"})
	assert.Error(t, err)
}
