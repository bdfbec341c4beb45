package dto

type ChatTurn struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required"`
}

type QueryRequest struct {
	Query   string            `json:"query" validate:"required"`
	Filter  map[string]string `json:"filter"`
	History []ChatTurn        `json:"history" validate:"dive"`
}

type QuerySource struct {
	DocumentId string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
	ChunkId    string  `json:"chunk_id"`
}

type QueryMetrics struct {
	EmbeddingMs float64 `json:"embedding_ms"`
	SearchMs    float64 `json:"search_ms"`
	LLMMs       float64 `json:"llm_ms"`
	TotalMs     float64 `json:"total_ms"`
	TokensUsed  int     `json:"tokens_used"`
	CostUSD     float64 `json:"cost_usd"`
	CacheHit    bool    `json:"cache_hit"`
}

type QueryResponse struct {
	Answer      string        `json:"answer"`
	Sources     []QuerySource `json:"sources"`
	ContextUsed int           `json:"context_used"`
	Metrics     QueryMetrics  `json:"metrics"`
}
