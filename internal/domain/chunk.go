package domain

import "time"

// Chunk is an ordered fragment of one document's extracted text
type Chunk struct {
	ID            string
	DocumentID    string
	SequenceIndex int
	Content       string
	PageNumber    *int
	Embedding     []float32 // nil until computed, or when embedding failed
	Metadata      ChunkMetadata
	CreatedAt     time.Time
}

// ChunkMetadata is the free-form metadata stored with each chunk
type ChunkMetadata struct {
	ChunkSize int            `json:"chunk_size"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// HasEmbedding reports whether the chunk is eligible for similarity search
func (c *Chunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}
