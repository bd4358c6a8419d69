// Package corpus implements the corpus reader: schema introspection,
// book/chapter/verse/token retrieval, and book-level exclusion against
// the relational verse/token store.
package corpus

import (
	"context"
	"fmt"
	"iter"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
)

// Reader opens the verse+token store read-only. It is immutable after
// construction and holds no open transaction across yields; callers that
// need more than one pass over Verses must materialize the sequence
// themselves — the stream is not restartable.
type Reader struct {
	db     *sqlx.DB
	driver string
	schema model.SchemaInfo
	log    zerolog.Logger
}

// Options configures schema resolution (the text_prefer and
// require_clean keys).
type Options struct {
	Driver       string // "postgres" or "sqlite3"
	TextPrefer   TextPreference
	RequireClean bool
}

// NewReader introspects the store's schema and returns a ready Reader.
// Fatal schema problems (missing required column under strict mode,
// missing verses table) surface here as SchemaError.
func NewReader(ctx context.Context, db *sqlx.DB, opts Options, log zerolog.Logger) (*Reader, error) {
	prefer := opts.TextPrefer
	if prefer == "" {
		prefer = TextPreferAuto
	}

	schema, err := resolveSchema(ctx, db, opts.Driver, prefer, opts.RequireClean)
	if err != nil {
		return nil, err
	}

	return &Reader{db: db, driver: opts.Driver, schema: schema, log: log}, nil
}

// SchemaInfo returns the resolved schema descriptor.
func (r *Reader) SchemaInfo() model.SchemaInfo { return r.schema }

type bookRow struct {
	ID   int64  `db:"id"`
	Name string `db:"book_name"`
}

type verseRow struct {
	ID       int64  `db:"id"`
	BookID   int64  `db:"book_id"`
	Chapter  int    `db:"chapter_number"`
	VerseNum int    `db:"verse_num"`
	Text     string `db:"text"`
}

type tokenRow struct {
	VerseID   int64  `db:"verse_id"`
	TokenIdx  int    `db:"token_idx"`
	Surface   string `db:"surface"`
	StrongsID string `db:"strongs_id"`
	Lemma     string `db:"lemma"`
	POS       string `db:"pos"`
}

// Verses streams every verse in canonical (OT then NT, by book id) order,
// with tokens attached and sorted by token index, excluding any book whose
// name appears in exclude. It is a single forward pass: Verses reads the
// book names, then opens one query for verses (joined to chapters, in
// canonical order) and one bulk secondary query for all their tokens, keyed
// by verse_id.
// The returned sequence is not restartable; ranging over it twice issues
// two fresh queries.
func (r *Reader) Verses(ctx context.Context, exclude map[string]bool) iter.Seq2[model.Verse, error] {
	return func(yield func(model.Verse, error) bool) {
		books, err := r.loadBooks(ctx)
		if err != nil {
			yield(model.Verse{}, err)
			return
		}

		bookName := make(map[int64]string, len(books))
		for _, b := range books {
			bookName[b.ID] = b.Name
		}

		verseRows, err := r.loadVerses(ctx, exclude, bookName)
		if err != nil {
			yield(model.Verse{}, err)
			return
		}
		if len(verseRows) == 0 {
			return
		}

		verseIDs := make([]int64, len(verseRows))
		for i, v := range verseRows {
			verseIDs[i] = v.ID
		}

		tokensByVerse, err := r.loadTokens(ctx, verseIDs)
		if err != nil {
			yield(model.Verse{}, err)
			return
		}

		for _, vr := range verseRows {
			toks := tokensByVerse[vr.ID]
			verse := model.Verse{
				Book:     bookName[vr.BookID],
				Chapter:  vr.Chapter,
				VerseNum: vr.VerseNum,
				VerseID:  vr.ID,
				Text:     vr.Text,
				Tokens:   toks,
			}
			if !yield(verse, nil) {
				return
			}
		}
	}
}

func (r *Reader) loadBooks(ctx context.Context) ([]bookRow, error) {
	var books []bookRow
	if err := r.db.SelectContext(ctx, &books, `
		SELECT id, book_name FROM books ORDER BY id
	`); err != nil {
		return nil, pipeline.SchemaError(fmt.Sprintf("load books: %v", err))
	}
	return books, nil
}

func (r *Reader) loadVerses(ctx context.Context, exclude map[string]bool, bookName map[int64]string) ([]verseRow, error) {
	query := fmt.Sprintf(`
		SELECT v.id as id, c.book_id as book_id, c.chapter_number as chapter_number,
		       v.verse_num as verse_num, v.%s as text
		FROM verses v
		JOIN chapters c ON v.chapter_id = c.id
		ORDER BY c.book_id, c.chapter_number, v.verse_num
	`, r.schema.ResolvedColumn)

	var rows []verseRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, pipeline.SchemaError(fmt.Sprintf("load verses: %v", err))
	}

	if len(exclude) == 0 {
		return rows, nil
	}

	filtered := rows[:0]
	for _, v := range rows {
		if exclude[bookName[v.BookID]] {
			continue
		}
		filtered = append(filtered, v)
	}
	return filtered, nil
}

func (r *Reader) loadTokens(ctx context.Context, verseIDs []int64) (map[int64][]model.Token, error) {
	if len(verseIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT verse_id, token_idx, surface,
		       COALESCE(strongs_id, '') as strongs_id,
		       COALESCE(lemma, '') as lemma,
		       COALESCE(pos, '') as pos
		FROM tokens
		WHERE verse_id IN (?)
	`, verseIDs)
	if err != nil {
		return nil, pipeline.SchemaError(fmt.Sprintf("build token query: %v", err))
	}
	query = r.db.Rebind(query)

	var rows []tokenRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, pipeline.SchemaError(fmt.Sprintf("load tokens: %v", err))
	}

	knownVerses := make(map[int64]bool, len(verseIDs))
	for _, id := range verseIDs {
		knownVerses[id] = true
	}

	byVerse := make(map[int64][]tokenRow, len(verseIDs))
	orphans := 0
	for _, row := range rows {
		if !knownVerses[row.VerseID] {
			orphans++
			continue
		}
		byVerse[row.VerseID] = append(byVerse[row.VerseID], row)
	}
	if orphans > 0 {
		r.log.Warn().Int("count", orphans).Msg("discarded orphan tokens with no matching verse")
	}

	result := make(map[int64][]model.Token, len(byVerse))
	for verseID, trs := range byVerse {
		sort.Slice(trs, func(i, j int) bool { return trs[i].TokenIdx < trs[j].TokenIdx })
		toks := make([]model.Token, len(trs))
		for i, t := range trs {
			toks[i] = model.Token{
				Index:     t.TokenIdx,
				Surface:   t.Surface,
				StrongsID: rulesengine.FirstStrongs(t.StrongsID),
				Lemma:     t.Lemma,
				POS:       t.POS,
			}
		}
		result[verseID] = toks
	}
	return result, nil
}
