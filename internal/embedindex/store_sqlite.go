package embedindex

import (
	"context"
	"database/sql"
	"encoding/json"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// RegisterSQLiteVec installs the sqlite-vec extension into the process's
// sqlite3 driver. Call once at startup before opening any database handle
// that uses SQLiteStore.
func RegisterSQLiteVec() {
	sqlite_vec.Auto()
}

// SQLiteStore persists an Index into a sqlite-vec virtual table, for
// deployments using the sqlite3 Corpus Reader backend.
type SQLiteStore struct {
	db *sql.DB
	d  int
}

// NewSQLiteStore wraps db for sqlite-vec persistence of D-dimensional
// vectors. The caller must have created a `vec0` virtual table named
// verse_vectors(verse_id integer primary key, embedding float[D]) matching
// d beforehand; the schema migrations do not create it.
func NewSQLiteStore(db *sql.DB, d int) *SQLiteStore {
	return &SQLiteStore{db: db, d: d}
}

// Upsert writes every row of idx into the verse_vectors virtual table.
func (s *SQLiteStore) Upsert(ctx context.Context, idx Index) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pipeline.IndexError("begin sqlite-vec upsert transaction: " + err.Error())
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verse_vectors(verse_id, embedding)
		VALUES (?, ?)
		ON CONFLICT(verse_id) DO UPDATE SET embedding = excluded.embedding
	`)
	if err != nil {
		return pipeline.IndexError("prepare sqlite-vec upsert: " + err.Error())
	}
	defer stmt.Close()

	for i, verseID := range idx.VerseIDs {
		blob, err := json.Marshal(idx.Row(i))
		if err != nil {
			return pipeline.IndexError("marshal embedding for sqlite-vec: " + err.Error())
		}
		if _, err := stmt.ExecContext(ctx, verseID, string(blob)); err != nil {
			return pipeline.IndexError("upsert embedding for verse: " + err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return pipeline.IndexError("commit sqlite-vec upsert: " + err.Error())
	}
	return nil
}

// Search runs a sqlite-vec nearest-neighbor MATCH query and returns the
// top-k verse IDs with their distances, closest first.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, topK int) ([]int64, []float32, error) {
	blob, err := json.Marshal(query)
	if err != nil {
		return nil, nil, pipeline.QueryError("marshal query embedding: " + err.Error())
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT verse_id, distance
		FROM verse_vectors
		WHERE embedding MATCH ? AND k = ?
		ORDER BY distance
	`, string(blob), topK)
	if err != nil {
		return nil, nil, pipeline.QueryError("sqlite-vec search: " + err.Error())
	}
	defer rows.Close()

	var ids []int64
	var distances []float32
	for rows.Next() {
		var id int64
		var dist float32
		if err := rows.Scan(&id, &dist); err != nil {
			return nil, nil, pipeline.QueryError("scan sqlite-vec search row: " + err.Error())
		}
		ids = append(ids, id)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, pipeline.QueryError("iterate sqlite-vec search rows: " + err.Error())
	}

	return ids, distances, nil
}
