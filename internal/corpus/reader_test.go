package corpus

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func expectColumns(mock sqlmock.Sqlmock, cols ...string) {
	rows := sqlmock.NewRows([]string{"column_name"})
	for _, c := range cols {
		rows.AddRow(c)
	}
	mock.ExpectQuery("information_schema.columns").WillReturnRows(rows)
}

func TestNewReaderResolvesCleanFirstUnderAuto(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "id", "chapter_id", "verse_num", "text_plain", "text_clean")

	r, err := NewReader(context.Background(), db, Options{Driver: "postgres"}, zerolog.Nop())
	require.NoError(t, err)

	info := r.SchemaInfo()
	assert.True(t, info.HasTextPlain)
	assert.True(t, info.HasTextClean)
	assert.Equal(t, "text_clean", info.ResolvedColumn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewReaderRequireCleanFailsWhenCleanAbsent(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "id", "chapter_id", "verse_num", "text_plain")

	_, err := NewReader(context.Background(), db, Options{
		Driver:       "postgres",
		TextPrefer:   TextPreferClean,
		RequireClean: true,
	}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, pipeline.IsCode(err, pipeline.CodeSchemaError))
}

func TestNewReaderPreferCleanFallsBackWithoutStrictMode(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "id", "chapter_id", "verse_num", "text_plain")

	r, err := NewReader(context.Background(), db, Options{
		Driver:     "postgres",
		TextPrefer: TextPreferClean,
	}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "text_plain", r.SchemaInfo().ResolvedColumn)
}

func TestNewReaderFailsWhenNoTextColumnExists(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "id", "chapter_id", "verse_num")

	_, err := NewReader(context.Background(), db, Options{Driver: "postgres"}, zerolog.Nop())
	require.Error(t, err)
	assert.True(t, pipeline.IsCode(err, pipeline.CodeSchemaError))
}

func TestVersesAttachesTokensSortedByIndex(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "text_plain")

	r, err := NewReader(context.Background(), db, Options{Driver: "postgres"}, zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectQuery("FROM books").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_name"}).AddRow(1, "Genesis"))
	mock.ExpectQuery("FROM verses").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_id", "chapter_number", "verse_num", "text"}).
			AddRow(10, 1, 1, 1, "In the beginning God created the heaven and the earth."))
	mock.ExpectQuery("FROM tokens").WillReturnRows(
		sqlmock.NewRows([]string{"verse_id", "token_idx", "surface", "strongs_id", "lemma", "pos"}).
			AddRow(10, 3, "God", "h430", "elohim", "N").
			AddRow(10, 0, "In", "", "", "").
			AddRow(10, 1, "the", "", "", ""))

	var verses []model.Verse
	for v, err := range r.Verses(context.Background(), nil) {
		require.NoError(t, err)
		verses = append(verses, v)
	}

	require.Len(t, verses, 1)
	v := verses[0]
	assert.Equal(t, "Genesis", v.Book)
	assert.Equal(t, int64(10), v.VerseID)
	require.Len(t, v.Tokens, 3)
	assert.Equal(t, []int{0, 1, 3}, []int{v.Tokens[0].Index, v.Tokens[1].Index, v.Tokens[2].Index})
	assert.Equal(t, "H0430", v.Tokens[2].StrongsID, "store Strong's keys are normalized on read")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVersesDiscardsOrphanTokens(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "text_plain")

	r, err := NewReader(context.Background(), db, Options{Driver: "postgres"}, zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectQuery("FROM books").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_name"}).AddRow(1, "Genesis"))
	mock.ExpectQuery("FROM verses").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_id", "chapter_number", "verse_num", "text"}).
			AddRow(10, 1, 1, 1, "In the beginning"))
	mock.ExpectQuery("FROM tokens").WillReturnRows(
		sqlmock.NewRows([]string{"verse_id", "token_idx", "surface", "strongs_id", "lemma", "pos"}).
			AddRow(10, 0, "In", "", "", "").
			AddRow(999, 0, "stray", "", "", ""))

	for v, err := range r.Verses(context.Background(), nil) {
		require.NoError(t, err)
		assert.Len(t, v.Tokens, 1)
	}
}

func TestVersesExcludesNamedBooks(t *testing.T) {
	db, mock := newMockDB(t)
	expectColumns(mock, "text_plain")

	r, err := NewReader(context.Background(), db, Options{Driver: "postgres"}, zerolog.Nop())
	require.NoError(t, err)

	mock.ExpectQuery("FROM books").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_name"}).AddRow(1, "Genesis").AddRow(2, "Exodus"))
	mock.ExpectQuery("FROM verses").WillReturnRows(
		sqlmock.NewRows([]string{"id", "book_id", "chapter_number", "verse_num", "text"}).
			AddRow(10, 1, 1, 1, "first").
			AddRow(20, 2, 1, 1, "second"))
	mock.ExpectQuery("FROM tokens").WillReturnRows(
		sqlmock.NewRows([]string{"verse_id", "token_idx", "surface", "strongs_id", "lemma", "pos"}))

	var books []string
	for v, err := range r.Verses(context.Background(), map[string]bool{"Genesis": true}) {
		require.NoError(t, err)
		books = append(books, v.Book)
	}
	assert.Equal(t, []string{"Exodus"}, books)
}
