package embedding

import "context"

// Result carries one fixed-dimension vector per input text plus the token
// usage the service reported (estimated when the backend reports none).
type Result struct {
	Vectors     [][]float32
	TotalTokens int
}

// Provider generates embeddings for a batch of input strings.
type Provider interface {
	Embed(ctx context.Context, texts []string) (*Result, error)
}
