package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable marks backend connectivity failures. Callers detect it with
// errors.Is and degrade instead of crashing (the query pipeline answers from
// an empty context when the store is unreachable).
var ErrUnavailable = errors.New("vector store unavailable")

// VectorRecord is the backend-agnostic unit stored in and returned by a Store.
// Score is populated only on search results; search results omit the stored
// vector to save bandwidth.
type VectorRecord struct {
	Id       string                 `json:"id"`
	Vector   []float32              `json:"vector,omitempty"`
	Text     string                 `json:"text"`
	Metadata map[string]interface{} `json:"metadata"`
	Score    float64                `json:"score,omitempty"`
}

// Stats describes the current state of the backing index.
type Stats struct {
	TotalVectors int64                  `json:"total_vectors"`
	Dimensions   int                    `json:"dimensions"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// Store is the capability contract both backends implement. The pipeline holds
// only this interface and never branches on the backend kind.
//
// Upsert is idempotent on record id: re-upserting an id replaces its vector,
// text and metadata without creating a duplicate. Implementations batch
// internally when the backend has a per-call item limit.
//
// Search returns records ordered by score descending. The filter restricts
// results to records whose metadata matches every key/value equality
// constraint.
//
// Delete ignores unknown ids; the returned count reflects what the backend
// reports as actually removed. The managed backend reports no count at all,
// so its Delete echoes the request size; callers needing an exact figure
// should diff Stats around the call.
type Store interface {
	Upsert(ctx context.Context, records []VectorRecord) (int, error)
	Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]VectorRecord, error)
	Delete(ctx context.Context, ids []string) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

const (
	KindPinecone = "pinecone"
	KindPgVector = "pgvector"
)

// Config selects and parameterizes a backend. Exactly one variant is used,
// chosen by Kind.
type Config struct {
	Kind     string
	Pinecone PineconeConfig
	PgVector PgVectorConfig
}

// New builds the Store selected by cfg.Kind. Backends connect lazily on first
// use, so New itself never dials anything.
func New(cfg Config) (Store, error) {
	switch cfg.Kind {
	case KindPinecone, "":
		return NewPineconeStore(cfg.Pinecone), nil
	case KindPgVector, "postgres", "postgresql":
		return NewPgVectorStore(cfg.PgVector), nil
	default:
		return nil, fmt.Errorf("unknown vector store kind: %s", cfg.Kind)
	}
}
