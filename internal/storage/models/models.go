package models

import "time"

// Document is an ingested source file. Immutable once chunked; re-ingesting
// the same file creates a new set of chunks (no deduplication).
type Document struct {
	ID         string
	Filename   string
	RawText    string
	ChunkCount int
	CreatedAt  time.Time
}

// Chunk is an overlapping slice of a document's normalized text, the unit of
// retrieval. Ordinal is the chunk's position within its document; the global
// position in the chunk store is implicit in storage order.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Source     string `json:"source"`
	Ordinal    int    `json:"ordinal"`
	Text       string `json:"text"`
	Page       string `json:"page,omitempty"`
}

// RetrievedChunk is a chunk paired with its similarity score for one query.
// Score is cosine similarity via inner product over normalized vectors, so
// it lies in [-1, 1] and may be negative for opposed vectors.
type RetrievedChunk struct {
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Page    string  `json:"page"`
	Score   float32 `json:"score"`
}

// WebSnippet is a web search result supplied by the search collaborator and
// merged into the prompt context.
type WebSnippet struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// QueryRecord is the persisted trace of one answered question.
type QueryRecord struct {
	ID             string
	Question       string
	Template       string
	Answer         string
	RetrievedCount int
	WebSearchUsed  bool
	OutOfScope     bool
	LatencyMS      int
	CreatedAt      time.Time
}

// QuerySource records one citation source for a query.
type QuerySource struct {
	ID      int
	QueryID string
	Source  string
	ChunkID string
	Score   float64
}

type Feedback struct {
	ID        int
	QueryID   string
	Helpful   bool
	Comment   string
	CreatedAt time.Time
}

// EvaluationResult is the persisted per-question outcome of an offline
// evaluation run.
type EvaluationResult struct {
	ID           int
	RunID        string
	Question     string
	Category     string
	NumRetrieved int
	PrecisionAtK float64
	RecallAtK    float64
	AvgScore     float64
	Faithfulness float64
	CreatedAt    time.Time
}
