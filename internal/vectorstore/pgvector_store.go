package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-docquery-be/pkg/database"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPgVectorTable = "embeddings"
	defaultDimensions    = 1536
	pgUpsertBatchSize    = 500
)

// PgVectorConfig parameterizes the relational backend. DSN is a Postgres
// connection string; the pgvector extension must be installable.
type PgVectorConfig struct {
	DSN        string
	Table      string
	Dimensions int
}

// PgVectorStore keeps vectors in a Postgres table with a pgvector column.
// The connection is established lazily on first use; the backing table and an
// approximate nearest-neighbor index are ensured idempotently at that point.
type PgVectorStore struct {
	cfg PgVectorConfig

	mu sync.Mutex
	db *gorm.DB
}

var _ Store = &PgVectorStore{}

func NewPgVectorStore(cfg PgVectorConfig) *PgVectorStore {
	if cfg.Table == "" {
		cfg.Table = defaultPgVectorTable
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	return &PgVectorStore{cfg: cfg}
}

// NewPgVectorStoreWithDB wires an already-open connection, used by
// integration tests.
func NewPgVectorStoreWithDB(db *gorm.DB, cfg PgVectorConfig) (*PgVectorStore, error) {
	s := NewPgVectorStore(cfg)
	if err := s.ensureSchema(db); err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

type embeddingRow struct {
	Id        string            `gorm:"column:id;primaryKey"`
	Embedding pgvector.Vector   `gorm:"column:embedding"`
	Text      string            `gorm:"column:text"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// conn returns the lazily-opened connection. A failed open is not cached, so
// the first call after a cold start may fail while later calls succeed.
func (s *PgVectorStore) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.WithContext(ctx), nil
	}

	db, err := database.NewGormDBFromDSN(s.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect postgres: %v", ErrUnavailable, err)
	}
	if err := s.ensureSchema(db); err != nil {
		return nil, err
	}

	s.db = db
	return s.db.WithContext(ctx), nil
}

func (s *PgVectorStore) ensureSchema(db *gorm.DB) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d),
			text TEXT,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`, s.cfg.Table, s.cfg.Dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`, s.cfg.Table, s.cfg.Table),
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("%w: ensure schema: %v", ErrUnavailable, err)
		}
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, records []VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	rows := make([]embeddingRow, len(records))
	for i, r := range records {
		rows[i] = embeddingRow{
			Id:        r.Id,
			Embedding: pgvector.NewVector(r.Vector),
			Text:      r.Text,
			Metadata:  datatypes.JSONMap(r.Metadata),
		}
	}

	err = db.Table(s.cfg.Table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"embedding", "text", "metadata"}),
		}).
		CreateInBatches(&rows, pgUpsertBatchSize).Error
	if err != nil {
		return 0, fmt.Errorf("pgvector upsert: %w", err)
	}

	return len(records), nil
}

func (s *PgVectorStore) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]VectorRecord, error) {
	if topK <= 0 {
		topK = 5
	}

	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	vec := pgvector.NewVector(queryVector)

	type scoredRow struct {
		Id       string
		Text     string
		Metadata datatypes.JSONMap
		Score    float64
	}
	var rows []scoredRow

	// Cosine distance in pgvector is 1 - cosine_similarity, so the score is
	// 1 - (embedding <=> query).
	query := db.Table(s.cfg.Table).
		Select("id, text, metadata, 1 - (embedding <=> ?) AS score", vec)
	for key, value := range filter {
		query = query.Where("metadata->>? = ?", key, value)
	}
	// Order by raw distance ascending so the ivfflat index can serve the
	// scan. gorm's Order silently drops expression arguments, so the bound
	// vector has to go through an explicit OrderBy clause.
	err = query.
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}},
		}).
		Limit(topK).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}

	records := make([]VectorRecord, len(rows))
	for i, row := range rows {
		records[i] = VectorRecord{
			Id:       row.Id,
			Text:     row.Text,
			Metadata: map[string]interface{}(row.Metadata),
			Score:    row.Score,
		}
	}

	return records, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}

	res := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id IN ?", s.cfg.Table), ids)
	if res.Error != nil {
		return 0, fmt.Errorf("pgvector delete: %w", res.Error)
	}

	return int(res.RowsAffected), nil
}

func (s *PgVectorStore) Stats(ctx context.Context) (*Stats, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := db.Table(s.cfg.Table).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("pgvector stats: %w", err)
	}

	var tableSize string
	if err := db.Raw("SELECT pg_size_pretty(pg_total_relation_size(?))", s.cfg.Table).Scan(&tableSize).Error; err != nil {
		return nil, fmt.Errorf("pgvector stats: %w", err)
	}

	return &Stats{
		TotalVectors: count,
		Dimensions:   s.cfg.Dimensions,
		Extra: map[string]interface{}{
			"table_size": tableSize,
		},
	}, nil
}
