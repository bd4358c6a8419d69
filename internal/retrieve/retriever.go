// Package retrieve implements cosine similarity search over an embedding
// index, cross-reference lookup, and answer-context assembly. It only
// retrieves ranked candidates; it never generates natural-language
// answers.
package retrieve

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/sola-scriptura-search-api/internal/embedindex"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// Result is one scored retrieval candidate.
type Result struct {
	VerseID   int64
	Book      string
	Chapter   int
	Verse     int
	Reference string
	Text      string
	Score     float32
}

// Retriever answers semantic search, cross-reference, and answer-context
// queries against a loaded embedding index. It is immutable after
// construction; multiple concurrent callers may share one instance.
type Retriever struct {
	idx        embedindex.Index
	embedder   embedindex.Embedder
	refToVerse map[string]int64
}

// New builds a Retriever from a loaded index and the same encoder used to
// build it. It returns an IndexError if the index's internal invariants
// don't hold.
func New(idx embedindex.Index, embedder embedindex.Embedder) (*Retriever, error) {
	if idx.N != len(idx.VerseIDs) || idx.N != len(idx.Metadata) {
		return nil, pipeline.IndexError("embedding index row count disagrees with verse id / metadata counts")
	}

	refToVerse := make(map[string]int64, idx.N)
	for _, id := range idx.VerseIDs {
		meta := idx.Metadata[id]
		refToVerse[meta.Reference] = id
	}

	return &Retriever{idx: idx, embedder: embedder, refToVerse: refToVerse}, nil
}

// Search performs semantic search for query, returning at most topK
// results sorted by descending score. An empty or whitespace-only query
// returns an empty result, not an error. book, when non-empty, restricts
// results to that book name. threshold, when non-zero, is applied as a
// post-filter minimum score.
func (r *Retriever) Search(ctx context.Context, query string, topK int, book string, threshold float32) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if topK < 1 {
		topK = 1
	}

	queryVec, err := r.embedder.Embed(ctx, query, embedindex.TaskTypeQuery)
	if err != nil {
		return nil, pipeline.QueryError("embed query: " + err.Error())
	}

	fetchK := topK
	if book != "" {
		fetchK = topK * 2
	}

	candidates := r.scoreAll(queryVec, -1)
	sortResults(candidates)

	var filtered []Result
	for _, c := range candidates {
		if book != "" && c.Book != book {
			continue
		}
		filtered = append(filtered, c)
		if len(filtered) >= fetchK {
			break
		}
	}

	var out []Result
	for _, c := range filtered {
		if threshold != 0 && c.Score < threshold {
			continue
		}
		out = append(out, c)
		if len(out) >= topK {
			break
		}
	}

	return out, nil
}

// CrossReference returns up to topK verses most semantically similar to
// the verse named by ref, excluding the verse itself. An unknown reference
// returns an empty list, not an error.
func (r *Retriever) CrossReference(ctx context.Context, ref string, topK int) ([]Result, error) {
	verseID, ok := r.refToVerse[ref]
	if !ok {
		return nil, nil
	}
	if topK < 1 {
		topK = 1
	}

	rowIdx := -1
	for i, id := range r.idx.VerseIDs {
		if id == verseID {
			rowIdx = i
			break
		}
	}
	if rowIdx < 0 {
		return nil, nil
	}

	queryVec := r.idx.Row(rowIdx)
	candidates := r.scoreAll(queryVec, verseID)
	sortResults(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// AnswerContext returns the top-k results for question verbatim, alongside
// a concatenated "{reference}: {text}" context block, one result per line.
// It performs no answer generation.
func (r *Retriever) AnswerContext(ctx context.Context, question string, topK int) ([]Result, string, error) {
	results, err := r.Search(ctx, question, topK, "", 0)
	if err != nil {
		return nil, "", err
	}

	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(res.Reference)
		b.WriteString(": ")
		b.WriteString(res.Text)
	}
	return results, b.String(), nil
}

// scoreAll computes cosine similarity between query and every row of the
// index, excluding excludeVerseID (-1 to exclude nothing).
func (r *Retriever) scoreAll(query []float32, excludeVerseID int64) []Result {
	results := make([]Result, 0, r.idx.N)
	for i, verseID := range r.idx.VerseIDs {
		if verseID == excludeVerseID {
			continue
		}
		meta := r.idx.Metadata[verseID]
		score := cosineSimilarity(query, r.idx.Row(i))
		results = append(results, Result{
			VerseID:   verseID,
			Book:      meta.Book,
			Chapter:   meta.Chapter,
			Verse:     meta.Verse,
			Reference: meta.Reference,
			Text:      meta.Text,
			Score:     score,
		})
	}
	return results
}

// sortResults orders by descending score, breaking ties with the lower
// verse ID first.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].VerseID < results[j].VerseID
	})
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
