package model

// Document is the transient ingestion unit. Only its chunks are persisted.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
