package embedindex

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

const defaultBatchSize = 32

// BuildConfig controls how Build encodes a corpus.
type BuildConfig struct {
	IncludeContext bool
	BatchSize      int

	// Progress, when non-nil, is invoked after each encoded batch with the
	// number of verses encoded so far and the total. It must not block.
	Progress func(done, total int)
}

// Index is the in-memory result of Build: a row-major float32 matrix, its
// verse-ID ordering, and per-verse metadata. N == len(VerseIDs) ==
// len(Metadata); every row has width D.
type Index struct {
	Matrix    []float32
	N         int
	D         int
	VerseIDs  []int64
	Metadata  map[int64]model.EmbeddingMeta
}

// Row returns the i'th row as a slice view into Matrix.
func (idx Index) Row(i int) []float32 {
	return idx.Matrix[i*idx.D : (i+1)*idx.D]
}

// Build encodes every verse in verses with embedder, respecting cfg's
// batch size and context-prefixing option, and returns the assembled
// Index. Verse order in the output matches the input order.
func Build(ctx context.Context, verses []model.Verse, embedder Embedder, cfg BuildConfig, log zerolog.Logger) (Index, error) {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	n := len(verses)
	d := embedder.Dimension()

	idx := Index{
		Matrix:   make([]float32, 0, n*d),
		N:        n,
		D:        d,
		VerseIDs: make([]int64, 0, n),
		Metadata: make(map[int64]model.EmbeddingMeta, n),
	}

	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		batch := verses[start:end]

		texts := make([]string, len(batch))
		for i, v := range batch {
			texts[i] = encodingText(v, cfg.IncludeContext)
		}

		embeddings, err := embedder.EmbedBatch(ctx, texts, TaskTypeDocument)
		if err != nil {
			return Index{}, pipeline.IndexError("embed batch: " + err.Error())
		}
		if len(embeddings) != len(batch) {
			return Index{}, pipeline.IndexError(fmt.Sprintf(
				"encoder returned %d embeddings for a batch of %d", len(embeddings), len(batch)))
		}

		for i, v := range batch {
			row := embeddings[i]
			if len(row) != d {
				return Index{}, pipeline.IndexError(fmt.Sprintf(
					"embedding for verse %d has dimension %d, want %d", v.VerseID, len(row), d))
			}
			idx.Matrix = append(idx.Matrix, row...)
			idx.VerseIDs = append(idx.VerseIDs, v.VerseID)
			idx.Metadata[v.VerseID] = model.EmbeddingMeta{
				Book:      v.Book,
				Chapter:   v.Chapter,
				Verse:     v.VerseNum,
				Reference: v.Reference(),
				Text:      v.Text,
			}
		}

		log.Debug().Int("encoded", end).Int("total", n).Msg("embedding batch complete")
		if cfg.Progress != nil {
			cfg.Progress(end, n)
		}
	}

	return idx, nil
}

func encodingText(v model.Verse, includeContext bool) string {
	if !includeContext {
		return v.Text
	}
	return fmt.Sprintf("%s — %s", v.Reference(), v.Text)
}
