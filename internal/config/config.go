package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	VectorDB VectorDBConfig
	Cache    CacheConfig
	Ai       AIConfig
	Rag      RagConfig
	Pricing  PricingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	EmbedChunksTopic   string
}

type DatabaseConfig struct {
	Connection string
}

type VectorDBConfig struct {
	Kind              string // "pinecone" or "pgvector"
	PineconeApiKey    string
	PineconeIndex     string
	PineconeIndexHost string
	PgVectorTable     string
	Dimensions        int
}

type CacheConfig struct {
	Enabled    bool
	TTLSeconds int
}

type AIConfig struct {
	EmbeddingProvider string // "openai" or "ollama"
	EmbeddingModel    string
	LLMProvider       string // "openai" or "ollama"
	LLMModel          string
	OpenAIApiKey      string
	OllamaBaseURL     string
}

type RagConfig struct {
	TopK                int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int
}

// PricingConfig holds the per-million-token rates used for query cost
// reporting. The LLM rate is a blended input/output average.
type PricingConfig struct {
	EmbeddingRatePer1M float64
	LLMRatePer1M       float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", ""),
			EmbedChunksTopic:   getEnv("EMBED_CHUNKS_TOPIC_NAME", "EMBED_DOCUMENT_CHUNKS"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		VectorDB: VectorDBConfig{
			Kind:              getEnv("VECTOR_DB_TYPE", "pinecone"),
			PineconeApiKey:    getEnv("PINECONE_API_KEY", ""),
			PineconeIndex:     getEnv("PINECONE_INDEX", "rag-index"),
			PineconeIndexHost: getEnv("PINECONE_INDEX_HOST", ""),
			PgVectorTable:     getEnv("PGVECTOR_TABLE", "embeddings"),
			Dimensions:        getEnvAsInt("EMBEDDING_DIM", 1536),
		},
		Cache: CacheConfig{
			Enabled:    getEnv("CACHE_ENABLED", "true") == "true",
			TTLSeconds: getEnvAsInt("CACHE_TTL", 3600),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
			LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
			OpenAIApiKey:      getEnv("OPENAI_API_KEY", ""),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		},
		Rag: RagConfig{
			TopK:                getEnvAsInt("TOP_K", 5),
			SimilarityThreshold: getEnvAsFloat("SIMILARITY_THRESHOLD", 0.7),
			ChunkSize:           getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap:        getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Pricing: PricingConfig{
			EmbeddingRatePer1M: getEnvAsFloat("EMBEDDING_RATE_PER_1M", 0.02),
			LLMRatePer1M:       getEnvAsFloat("LLM_RATE_PER_1M", 0.40),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
