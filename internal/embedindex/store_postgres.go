package embedindex

import (
	"context"

	"github.com/jmoiron/sqlx"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// PostgresStore persists an Index into a pgvector-backed `verses.embedding`
// column, for deployments that query similarity directly in Postgres
// instead of (or in addition to) loading the file-based artifacts.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps db for pgvector persistence.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Upsert writes every row of idx to the verses table's embedding column,
// keyed by verse id.
func (s *PostgresStore) Upsert(ctx context.Context, idx Index) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return pipeline.IndexError("begin pgvector upsert transaction: " + err.Error())
	}
	defer tx.Rollback()

	for i, verseID := range idx.VerseIDs {
		vec := pgvector.NewVector(idx.Row(i))
		if _, err := tx.ExecContext(ctx, `
			UPDATE verses SET embedding = $1 WHERE id = $2
		`, vec, verseID); err != nil {
			return pipeline.IndexError("upsert embedding for verse: " + err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return pipeline.IndexError("commit pgvector upsert: " + err.Error())
	}
	return nil
}

// Search runs a pgvector cosine-distance nearest-neighbor query and
// returns the top-k verse IDs with their similarity scores, highest first.
func (s *PostgresStore) Search(ctx context.Context, query []float32, topK int) ([]int64, []float32, error) {
	vec := pgvector.NewVector(query)

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, 1 - (embedding <=> $1::vector) as score
		FROM verses
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, vec, topK)
	if err != nil {
		return nil, nil, pipeline.QueryError("pgvector search: " + err.Error())
	}
	defer rows.Close()

	var ids []int64
	var scores []float32
	for rows.Next() {
		var id int64
		var score float32
		if err := rows.Scan(&id, &score); err != nil {
			return nil, nil, pipeline.QueryError("scan pgvector search row: " + err.Error())
		}
		ids = append(ids, id)
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, pipeline.QueryError("iterate pgvector search rows: " + err.Error())
	}

	return ids, scores, nil
}
