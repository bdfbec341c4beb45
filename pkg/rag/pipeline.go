package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"ai-docquery-be/internal/pkg/logger"
	"ai-docquery-be/internal/querycache"
	"ai-docquery-be/internal/vectorstore"
	"ai-docquery-be/pkg/embedding"
	"ai-docquery-be/pkg/llm"
)

// MaxQueryChars is the hard cap on query length, checked before any stage
// runs.
const MaxQueryChars = 1000

// NoInformationAnswer is the fixed phrase the generation instruction requires
// when the context cannot answer the question.
const NoInformationAnswer = "I could not find relevant information in the documents"

// noDocumentsContext stands in for the context block when nothing survives the
// similarity threshold.
const noDocumentsContext = "No relevant documents were found."

const systemPrompt = `You are an assistant that answers questions based EXCLUSIVELY on the context you are given.

Rules:
1. Answer ONLY from the context
2. If there is no relevant information, say "` + NoInformationAnswer + `"
3. Cite the source when possible
4. Be brief and precise
5. Answer in the language of the question`

// Request is one query execution: the question, optional metadata equality
// constraints for the search, and optional prior conversation turns.
type Request struct {
	Query   string
	Filter  map[string]string
	History []llm.Message
}

// Source points at one retrieved chunk used as context.
type Source struct {
	DocumentId string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	ChunkId    string  `json:"chunk_id"`
}

// Response is the grounded answer. This is also the shape cached under the
// query key.
type Response struct {
	Answer      string   `json:"answer"`
	Sources     []Source `json:"sources"`
	ContextUsed int      `json:"context_used"`
}

// Metrics is the per-stage latency/cost report, computed fresh per query and
// never persisted.
type Metrics struct {
	EmbeddingMs float64 `json:"embedding_ms"`
	SearchMs    float64 `json:"search_ms"`
	LLMMs       float64 `json:"llm_ms"`
	TotalMs     float64 `json:"total_ms"`
	TokensUsed  int     `json:"tokens_used"`
	CostUSD     float64 `json:"cost_usd"`
	CacheHit    bool    `json:"cache_hit"`
}

// Options carries the tunables for one pipeline instance.
type Options struct {
	TopK                int
	SimilarityThreshold float64
	CacheEnabled        bool
	CacheTTL            time.Duration
	EmbeddingRatePer1M  float64
	LLMRatePer1M        float64
}

// Pipeline orchestrates one query: cache check, embedding, similarity search,
// context assembly, generation, cache write. Each execution is a
// self-contained unit of work; the only shared state is the long-lived
// backend clients handed in at construction.
type Pipeline struct {
	store    vectorstore.Store
	embedder embedding.Provider
	llm      llm.LLMProvider
	cache    querycache.Cache
	log      logger.ILogger
	opts     Options
}

func NewPipeline(
	store vectorstore.Store,
	embedder embedding.Provider,
	llmProvider llm.LLMProvider,
	cache querycache.Cache,
	log logger.ILogger,
	opts Options,
) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.SimilarityThreshold == 0 {
		opts.SimilarityThreshold = 0.7
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = time.Hour
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		llm:      llmProvider,
		cache:    cache,
		log:      log,
		opts:     opts,
	}
}

// Process runs the full pipeline for one query.
//
// Stage order: CACHE_CHECK -> EMBED -> SEARCH -> CONTEXT_BUILD -> GENERATE ->
// CACHE_WRITE. A cache hit short-circuits after the first stage. A vector
// store that is unreachable degrades to the empty-context path; embedding or
// generation failures propagate as a StageError.
func (p *Pipeline) Process(ctx context.Context, req Request) (*Response, *Metrics, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, nil, ErrEmptyQuery
	}
	if utf8.RuneCountInString(query) > MaxQueryChars {
		return nil, nil, ErrQueryTooLong
	}

	start := time.Now()
	cacheKey := querycache.KeyFor(query)

	// 1. CACHE_CHECK
	if p.opts.CacheEnabled {
		if cached, hit := p.checkCache(ctx, cacheKey); hit {
			p.log.Info("rag", "cache hit", map[string]interface{}{"key": cacheKey})
			return cached, &Metrics{
				TotalMs:  round2(msSince(start)),
				CacheHit: true,
			}, nil
		}
	}

	// 2. EMBED
	embedStart := time.Now()
	embedRes, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, nil, &StageError{Stage: "embedding", Err: err}
	}
	if len(embedRes.Vectors) != 1 {
		return nil, nil, &StageError{Stage: "embedding", Err: fmt.Errorf("got %d vectors for one input", len(embedRes.Vectors))}
	}
	embeddingMs := msSince(embedStart)
	embeddingTokens := embedRes.TotalTokens

	// 3. SEARCH
	searchStart := time.Now()
	results := p.search(ctx, embedRes.Vectors[0], req.Filter)
	searchMs := msSince(searchStart)

	// 4. CONTEXT_BUILD
	contextBlock, sources := buildContext(results)

	// 5. GENERATE
	llmStart := time.Now()
	answer, llmTokens, err := p.generate(ctx, query, contextBlock, req.History)
	if err != nil {
		return nil, nil, &StageError{Stage: "generation", Err: err}
	}
	llmMs := msSince(llmStart)

	response := &Response{
		Answer:      answer,
		Sources:     sources,
		ContextUsed: len(results),
	}

	// 6. CACHE_WRITE (best-effort, last stage so an aborted pipeline leaves
	// no partial entry)
	if p.opts.CacheEnabled {
		if payload, err := json.Marshal(response); err == nil {
			p.cache.Put(ctx, cacheKey, payload, p.opts.CacheTTL)
		}
	}

	metrics := &Metrics{
		EmbeddingMs: round2(embeddingMs),
		SearchMs:    round2(searchMs),
		LLMMs:       round2(llmMs),
		TotalMs:     round2(msSince(start)),
		TokensUsed:  embeddingTokens + llmTokens,
		CostUSD:     p.cost(embeddingTokens, llmTokens),
		CacheHit:    false,
	}

	return response, metrics, nil
}

// checkCache returns the cached response on a hit. An undecodable payload is
// logged and treated as a miss, never surfaced.
func (p *Pipeline) checkCache(ctx context.Context, key string) (*Response, bool) {
	payload, found := p.cache.Get(ctx, key)
	if !found {
		return nil, false
	}

	var cached Response
	if err := json.Unmarshal(payload, &cached); err != nil {
		p.log.Warn("rag", "undecodable cached payload, treating as miss", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return nil, false
	}
	if cached.Sources == nil {
		cached.Sources = []Source{}
	}
	return &cached, true
}

// search runs the similarity search and drops everything below the threshold.
// An unreachable store degrades to zero results instead of failing the query.
func (p *Pipeline) search(ctx context.Context, queryVector []float32, filter map[string]string) []vectorstore.VectorRecord {
	records, err := p.store.Search(ctx, queryVector, p.opts.TopK, filter)
	if err != nil {
		if errors.Is(err, vectorstore.ErrUnavailable) {
			p.log.Warn("rag", "vector store unavailable, answering without context", map[string]interface{}{
				"error": err.Error(),
			})
			return nil
		}
		p.log.Error("rag", "search failed, answering without context", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	qualified := make([]vectorstore.VectorRecord, 0, len(records))
	for _, r := range records {
		if r.Score >= p.opts.SimilarityThreshold {
			qualified = append(qualified, r)
		}
	}
	return qualified
}

// buildContext turns the surviving records into numbered context blocks,
// preserving descending-score order, plus the parallel sources list.
func buildContext(records []vectorstore.VectorRecord) (string, []Source) {
	if len(records) == 0 {
		return noDocumentsContext, []Source{}
	}

	parts := make([]string, 0, len(records))
	sources := make([]Source, 0, len(records))
	for i, r := range records {
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, r.Text))

		documentId, _ := r.Metadata["document_id"].(string)
		filename, _ := r.Metadata["filename"].(string)
		if filename == "" {
			filename = documentId
		}
		sources = append(sources, Source{
			DocumentId: documentId,
			Filename:   filename,
			Score:      round3(r.Score),
			ChunkId:    r.Id,
		})
	}

	return strings.Join(parts, "\n\n"), sources
}

func (p *Pipeline) generate(ctx context.Context, query, contextBlock string, history []llm.Message) (string, int, error) {
	userPrompt := fmt.Sprintf(`Context from company documents:
---
%s
---

Question: %s

Answer:`, contextBlock, query)

	// System instruction first, final user turn last, history in between.
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: userPrompt})

	result, err := p.llm.Chat(ctx, messages,
		llm.WithTemperature(0.3),
		llm.WithMaxTokens(500),
	)
	if err != nil {
		return "", 0, err
	}

	return result.Content, result.TotalTokens, nil
}

// cost prices only the embedding and generation stages; cache hits and the
// search itself cost nothing.
func (p *Pipeline) cost(embeddingTokens, llmTokens int) float64 {
	embeddingCost := float64(embeddingTokens) / 1_000_000 * p.opts.EmbeddingRatePer1M
	llmCost := float64(llmTokens) / 1_000_000 * p.opts.LLMRatePer1M
	return round6(embeddingCost + llmCost)
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }
