package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"ai-docquery-be/pkg/embedding"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbedding(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	if os.Getenv("OLLAMA_INTEGRATION") != "true" {
		t.Skip("Skipping integration test: OLLAMA_INTEGRATION not set to true")
	}

	baseURL := os.Getenv("OLLAMA_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	provider := embedding.NewOllamaProvider(baseURL, model)

	res, err := provider.Embed(context.Background(), []string{
		"The vacation policy grants twenty days per year.",
		"Expense reports are due by the fifth of each month.",
	})
	require.NoError(t, err)
	require.Len(t, res.Vectors, 2)
	assert.NotEmpty(t, res.Vectors[0])
	assert.Positive(t, res.TotalTokens)

	// Vectors are normalized to unit length for cosine scoring.
	var norm float64
	for _, v := range res.Vectors[0] {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 0.01)
}
