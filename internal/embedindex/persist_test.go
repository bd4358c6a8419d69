package embedindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
)

func sampleIndex() Index {
	return Index{
		Matrix:   []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
		N:        2,
		D:        3,
		VerseIDs: []int64{7, 9},
		Metadata: map[int64]model.EmbeddingMeta{
			7: {Book: "John", Chapter: 3, Verse: 16, Reference: "John 3:16", Text: "For God so loved the world"},
			9: {Book: "John", Chapter: 3, Verse: 17, Reference: "John 3:17", Text: "For God sent not his Son"},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	idx := sampleIndex()

	require.NoError(t, Save(idx, dir))

	loaded, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, idx.Matrix, loaded.Matrix)
	assert.Equal(t, idx.N, loaded.N)
	assert.Equal(t, idx.D, loaded.D)
	assert.Equal(t, idx.VerseIDs, loaded.VerseIDs)
	assert.Equal(t, idx.Metadata, loaded.Metadata)
}

func TestLoadFailsWhenAnyArtifactIsMissing(t *testing.T) {
	for _, missing := range []string{"matrix.bin", "matrix.shape.json", "verse_ids.json", "metadata.json"} {
		dir := t.TempDir()
		require.NoError(t, Save(sampleIndex(), dir))
		require.NoError(t, os.Remove(filepath.Join(dir, missing)))

		_, err := Load(dir)
		require.Error(t, err, "missing %s must be fatal", missing)
		assert.True(t, pipeline.IsCode(err, pipeline.CodeIndexError))
	}
}

func TestLoadDetectsRowCountDisagreement(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(sampleIndex(), dir))

	// Drop one verse id so the ordering file disagrees with the shape.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "verse_ids.json"), []byte("[7]"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, pipeline.IsCode(err, pipeline.CodeIndexError))
}

func TestLoadDetectsTruncatedMatrix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Save(sampleIndex(), dir))

	raw, err := os.ReadFile(filepath.Join(dir, "matrix.bin"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "matrix.bin"), raw[:len(raw)-4], 0o644))

	_, err = Load(dir)
	require.Error(t, err)
	assert.True(t, pipeline.IsCode(err, pipeline.CodeIndexError))
}
