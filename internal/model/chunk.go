package model

import (
	"math"
	"time"
)

// Chunk is one stored segment of a document together with its embedding.
type Chunk struct {
	ID         int64     `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Content    string    `json:"content" db:"content"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

type SearchResult struct {
	ID         int64   `json:"id" db:"id"`
	Title      string  `json:"title" db:"title"`
	Content    string  `json:"content" db:"content"`
	ChunkIndex int     `json:"chunk_index" db:"chunk_index"`
	Similarity float64 `json:"similarity" db:"similarity"`
}

// DocumentSummary is one row of the grouped document listing.
type DocumentSummary struct {
	Title     string    `json:"title" db:"title"`
	Chunks    int64     `json:"chunks" db:"chunks"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type IngestResult struct {
	Title      string  `json:"title"`
	ChunkCount int     `json:"chunks"`
	IDs        []int64 `json:"ids"`
}

// ClampSimilarity maps a raw cosine similarity into [0, 1]. NaN, which a
// zero vector produces, maps to 0.
func ClampSimilarity(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
