package align

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignExactMatch(t *testing.T) {
	result := Align("In the beginning God created", []string{"In", "the", "beginning", "God", "created"})

	require.Equal(t, 0, result.Misses)
	assert.Equal(t, Offset{Start: 0, End: 2}, result.Offsets[0])
	assert.Equal(t, Offset{Start: 3, End: 6}, result.Offsets[1])
	assert.Equal(t, Offset{Start: 21, End: 28}, result.Offsets[4])
}

func TestAlignWhitespaceNormalizedRetry(t *testing.T) {
	// The surface has a single space but the text has two; the exact match
	// fails and the whitespace-collapsed retry must recover it.
	text := "In the  beginning"
	result := Align(text, []string{"the beginning"})

	require.Equal(t, 0, result.Misses)
	off := result.Offsets[0]
	runes := []rune(text)
	assert.Equal(t, "the  beginning", string(runes[off.Start:off.End]))
}

func TestAlignMissIncrementsCounterButContinues(t *testing.T) {
	result := Align("In the beginning", []string{"In", "nonexistentword", "beginning"})

	require.Equal(t, 1, result.Misses)
	assert.Equal(t, unaligned, result.Offsets[1])
	assert.NotEqual(t, unaligned, result.Offsets[0])
	assert.NotEqual(t, unaligned, result.Offsets[2])
}

func TestAlignSkipsPurePunctuationSurfaces(t *testing.T) {
	result := Align("God said, \"Let there be light.\"", []string{"God", "said", ",", "\"", "Let"})

	assert.Equal(t, unaligned, result.Offsets[2], "a bare comma has no alphanumeric content")
	assert.Equal(t, unaligned, result.Offsets[3])
	assert.Equal(t, 0, result.Misses, "skipped tokens are not counted as misses")
}

func TestAlignIsRuneSafeNotByteSafe(t *testing.T) {
	// "άγιος" (holy, Greek) is multi-byte per rune; offsets must be in code
	// points so a downstream substring by rune index recovers the surface.
	text := "Πνεῦμα ἅγιον ἐστιν"
	result := Align(text, []string{"Πνεῦμα", "ἅγιον", "ἐστιν"})

	require.Equal(t, 0, result.Misses)
	runes := []rune(text)
	for i, surface := range []string{"Πνεῦμα", "ἅγιον", "ἐστιν"} {
		off := result.Offsets[i]
		assert.Equal(t, surface, string(runes[off.Start:off.End]))
	}
}

func TestAlignAdvancesCursorLeftToRight(t *testing.T) {
	// "the" appears twice; each occurrence must bind to its own cursor
	// position rather than both matching the first occurrence.
	result := Align("the cat sat on the mat", []string{"the", "cat", "sat", "on", "the", "mat"})

	require.Equal(t, 0, result.Misses)
	assert.Equal(t, 0, result.Offsets[0].Start)
	assert.Equal(t, 15, result.Offsets[4].Start)
}
