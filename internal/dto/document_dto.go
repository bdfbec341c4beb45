package dto

import "time"

type IngestDocumentRequest struct {
	Filename string `json:"filename" validate:"required"`
	FileType string `json:"file_type"`
	Content  string `json:"content" validate:"required"`
}

type IngestDocumentResponse struct {
	DocumentId string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Status     string `json:"status"`
}

type DocumentResponse struct {
	DocumentId string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type"`
	FileSize   int64     `json:"file_size"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListDocumentsResponse struct {
	Documents []*DocumentResponse `json:"documents"`
	Total     int64               `json:"total"`
}

type DeleteDocumentResponse struct {
	DocumentId     string `json:"document_id"`
	VectorsDeleted int    `json:"vectors_deleted"`
}

type IndexStatsResponse struct {
	TotalVectors int64                  `json:"total_vectors"`
	Dimensions   int                    `json:"dimensions"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// ChunkPayload is one chunk handed from ingestion to the embedding consumer.
type ChunkPayload struct {
	Text       string `json:"text"`
	ChunkIndex int    `json:"chunk_index"`
	StartChar  int    `json:"start_char"`
	EndChar    int    `json:"end_char"`
}

// PublishEmbedChunksMessage is the payload published to the embed topic when a
// document is ingested.
type PublishEmbedChunksMessage struct {
	DocumentId string         `json:"document_id"`
	Filename   string         `json:"filename"`
	FileType   string         `json:"file_type"`
	Chunks     []ChunkPayload `json:"chunks"`
}
