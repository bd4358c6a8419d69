// Package embedindex implements the embedding index: batched verse
// encoding, dense matrix persistence, and verse-ID/metadata bookkeeping.
package embedindex

import "context"

// TaskType distinguishes a query embedding from a document embedding; some
// encoder backends use it to select an instruction prefix.
type TaskType string

const (
	TaskTypeQuery    TaskType = "RETRIEVAL_QUERY"
	TaskTypeDocument TaskType = "RETRIEVAL_DOCUMENT"
)

// Embedder is a pluggable sentence-level encoder backend. Implementations
// must return vectors of a single fixed dimension for every call.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType TaskType) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, taskType TaskType) ([][]float32, error)
	Dimension() int
}
