package service

import (
	"context"

	"ai-docquery-be/internal/dto"
	"ai-docquery-be/pkg/llm"
	"ai-docquery-be/pkg/rag"
)

type IQueryService interface {
	Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error)
}

type queryService struct {
	pipeline *rag.Pipeline
}

func NewQueryService(pipeline *rag.Pipeline) IQueryService {
	return &queryService{pipeline: pipeline}
}

func (s *queryService) Query(ctx context.Context, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: turn.Role, Content: turn.Content})
	}

	response, metrics, err := s.pipeline.Process(ctx, rag.Request{
		Query:   req.Query,
		Filter:  req.Filter,
		History: history,
	})
	if err != nil {
		return nil, err
	}

	sources := make([]dto.QuerySource, 0, len(response.Sources))
	for _, src := range response.Sources {
		sources = append(sources, dto.QuerySource{
			DocumentId: src.DocumentId,
			Filename:   src.Filename,
			Score:      src.Score,
			ChunkId:    src.ChunkId,
		})
	}

	return &dto.QueryResponse{
		Answer:      response.Answer,
		Sources:     sources,
		ContextUsed: response.ContextUsed,
		Metrics: dto.QueryMetrics{
			EmbeddingMs: metrics.EmbeddingMs,
			SearchMs:    metrics.SearchMs,
			LLMMs:       metrics.LLMMs,
			TotalMs:     metrics.TotalMs,
			TokensUsed:  metrics.TokensUsed,
			CostUSD:     metrics.CostUSD,
			CacheHit:    metrics.CacheHit,
		},
	}, nil
}
