package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const (
	defaultControlPlaneURL = "https://api.pinecone.io"

	// Backend-fixed limits: max vectors per upsert call and max stored
	// metadata text length.
	pineconeBatchSize       = 100
	pineconeMetadataTextCap = 1000
)

// PineconeConfig parameterizes the managed-ANN backend. IndexHost can be set
// directly (tests, pre-resolved hosts); otherwise it is resolved once from the
// control plane on first use.
type PineconeConfig struct {
	ApiKey          string
	IndexName       string
	IndexHost       string
	ControlPlaneURL string
}

// PineconeStore talks to a managed ANN service over its REST API. The index
// host is resolved lazily on first use and cached for the process lifetime.
type PineconeStore struct {
	cfg    PineconeConfig
	client *http.Client

	mu   sync.Mutex
	host string
}

var _ Store = &PineconeStore{}

func NewPineconeStore(cfg PineconeConfig) *PineconeStore {
	if cfg.ControlPlaneURL == "" {
		cfg.ControlPlaneURL = defaultControlPlaneURL
	}
	return &PineconeStore{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Wire structs (internal to this backend) ---

type pineconeVector struct {
	Id       string                 `json:"id"`
	Values   []float32              `json:"values"`
	Metadata map[string]interface{} `json:"metadata"`
}

type pineconeUpsertRequest struct {
	Vectors []pineconeVector `json:"vectors"`
}

type pineconeQueryRequest struct {
	Vector          []float32         `json:"vector"`
	TopK            int               `json:"topK"`
	IncludeMetadata bool              `json:"includeMetadata"`
	IncludeValues   bool              `json:"includeValues"`
	Filter          map[string]string `json:"filter,omitempty"`
}

type pineconeMatch struct {
	Id       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

type pineconeQueryResponse struct {
	Matches []pineconeMatch `json:"matches"`
}

type pineconeDeleteRequest struct {
	Ids []string `json:"ids"`
}

type pineconeStatsResponse struct {
	TotalVectorCount int64                      `json:"totalVectorCount"`
	Dimension        int                        `json:"dimension"`
	Namespaces       map[string]json.RawMessage `json:"namespaces"`
}

type pineconeIndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
}

// ensureHost resolves the data-plane host once and caches it. A failed
// resolution is not cached, so the next call retries.
func (s *PineconeStore) ensureHost(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.host != "" {
		return s.host, nil
	}
	if s.cfg.IndexHost != "" {
		s.host = s.cfg.IndexHost
		return s.host, nil
	}

	endpoint := fmt.Sprintf("%s/indexes/%s", s.cfg.ControlPlaneURL, s.cfg.IndexName)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create describe request: %w", err)
	}
	req.Header.Set("Api-Key", s.cfg.ApiKey)

	res, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: describe index: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read describe response: %v", ErrUnavailable, err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: describe index: status %d, body %s", ErrUnavailable, res.StatusCode, string(body))
	}

	var desc pineconeIndexDescription
	if err := json.Unmarshal(body, &desc); err != nil {
		return "", fmt.Errorf("unmarshal index description: %w", err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %s has no host", s.cfg.IndexName)
	}

	s.host = "https://" + desc.Host
	return s.host, nil
}

func (s *PineconeStore) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	host, err := s.ensureHost(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", host+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", s.cfg.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}
	defer res.Body.Close()

	resBody, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s: status %d, body %s", ErrUnavailable, path, res.StatusCode, string(resBody))
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("pinecone error: %s: status %d, body %s", path, res.StatusCode, string(resBody))
	}

	if out != nil && len(resBody) > 0 {
		if err := json.Unmarshal(resBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (s *PineconeStore) Upsert(ctx context.Context, records []VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	vectors := make([]pineconeVector, 0, len(records))
	for _, r := range records {
		metadata := map[string]interface{}{
			"text": truncate(r.Text, pineconeMetadataTextCap),
		}
		for k, v := range r.Metadata {
			metadata[k] = v
		}
		vectors = append(vectors, pineconeVector{
			Id:       r.Id,
			Values:   r.Vector,
			Metadata: metadata,
		})
	}

	// Batch transparently; the backend rejects oversized upsert calls.
	upserted := 0
	for start := 0; start < len(vectors); start += pineconeBatchSize {
		end := start + pineconeBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		batch := vectors[start:end]
		if err := s.post(ctx, "/vectors/upsert", pineconeUpsertRequest{Vectors: batch}, nil); err != nil {
			return upserted, err
		}
		upserted += len(batch)
	}

	return upserted, nil
}

func (s *PineconeStore) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]VectorRecord, error) {
	reqPayload := pineconeQueryRequest{
		Vector:          queryVector,
		TopK:            topK,
		IncludeMetadata: true,
		IncludeValues:   false,
	}
	if len(filter) > 0 {
		reqPayload.Filter = filter
	}

	var res pineconeQueryResponse
	if err := s.post(ctx, "/query", reqPayload, &res); err != nil {
		return nil, err
	}

	records := make([]VectorRecord, 0, len(res.Matches))
	for _, match := range res.Matches {
		text, _ := match.Metadata["text"].(string)
		records = append(records, VectorRecord{
			Id:       match.Id,
			Text:     text,
			Metadata: match.Metadata,
			Score:    match.Score,
		})
	}

	return records, nil
}

func (s *PineconeStore) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	// The backend does not report a deletion count; ids that never existed
	// are silently ignored on its side.
	if err := s.post(ctx, "/vectors/delete", pineconeDeleteRequest{Ids: ids}, nil); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *PineconeStore) Stats(ctx context.Context) (*Stats, error) {
	var res pineconeStatsResponse
	if err := s.post(ctx, "/describe_index_stats", struct{}{}, &res); err != nil {
		return nil, err
	}

	namespaces := make([]string, 0, len(res.Namespaces))
	for name := range res.Namespaces {
		namespaces = append(namespaces, name)
	}

	return &Stats{
		TotalVectors: res.TotalVectorCount,
		Dimensions:   res.Dimension,
		Extra: map[string]interface{}{
			"namespaces": namespaces,
		},
	}, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
