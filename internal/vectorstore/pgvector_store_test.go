package vectorstore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlRecorder captures every statement gorm builds, so SQL construction can
// be asserted without a live database.
type sqlRecorder struct {
	mu    sync.Mutex
	stmts []string
}

func (r *sqlRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }
func (r *sqlRecorder) Info(context.Context, string, ...interface{})     {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{})     {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{})    {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	sql, _ := fc()
	r.mu.Lock()
	r.stmts = append(r.stmts, sql)
	r.mu.Unlock()
}

func (r *sqlRecorder) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.stmts)
	return r.stmts[len(r.stmts)-1]
}

func newDryRunStore(t *testing.T) (*PgVectorStore, *sqlRecorder) {
	t.Helper()

	rec := &sqlRecorder{}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=test dbname=test",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               rec,
	})
	require.NoError(t, err)

	store, err := NewPgVectorStoreWithDB(db, PgVectorConfig{Table: "embeddings", Dimensions: 3})
	require.NoError(t, err)
	return store, rec
}

func TestPgVectorSearchOrdersByDistance(t *testing.T) {
	store, rec := newDryRunStore(t)

	_, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 4, nil)
	require.NoError(t, err)

	sql := rec.last(t)
	assert.Contains(t, sql, "1 - (embedding <=> ", "score must come from cosine distance")
	assert.Contains(t, sql, "ORDER BY embedding <=> ", "nearest neighbors require a distance ORDER BY")
	assert.Contains(t, sql, "LIMIT")
	assert.Less(t, strings.Index(sql, "ORDER BY"), strings.Index(sql, "LIMIT"))
}

func TestPgVectorSearchAppliesMetadataFilters(t *testing.T) {
	store, rec := newDryRunStore(t)

	_, err := store.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 4, map[string]string{
		"document_id": "doc-1",
	})
	require.NoError(t, err)

	sql := rec.last(t)
	assert.Contains(t, sql, "metadata->>")
	assert.Contains(t, sql, "doc-1")
	assert.Contains(t, sql, "ORDER BY embedding <=> ")
}

func TestPgVectorSchemaStatements(t *testing.T) {
	_, rec := newDryRunStore(t)

	rec.mu.Lock()
	joined := strings.Join(rec.stmts, "\n")
	rec.mu.Unlock()

	assert.Contains(t, joined, "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, joined, "vector(3)")
	assert.Contains(t, joined, "ivfflat (embedding vector_cosine_ops)")
}
