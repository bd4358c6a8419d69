// Package align implements the greedy, left-to-right alignment of an
// ordered token list to a verse's plain text, producing parallel character
// (code-point) offsets.
package align

import (
	"strings"
	"unicode"
)

// lookAheadWindow bounds the whitespace-normalized retry search, in runes,
// past the cursor.
const lookAheadWindow = 200

// Result is the output of aligning one verse's tokens to its text.
type Result struct {
	Offsets []Offset
	Misses  int
}

// Offset mirrors model.Offset without importing model, keeping this package
// free of a dependency on the pipeline's higher-level types; callers
// convert 1:1 into model.Offset.
type Offset struct {
	Start int
	End   int
}

var unaligned = Offset{Start: -1, End: -1}

// Align runs the aligner over text (already decoded as runes by the
// caller's choice of []rune or string — Align operates on code points
// throughout, never bytes) for each surface in surfaces, in order.
func Align(text string, surfaces []string) Result {
	runes := []rune(text)
	cursor := 0
	offsets := make([]Offset, len(surfaces))
	misses := 0

	for i, surface := range surfaces {
		if !hasAlphanumeric(surface) {
			offsets[i] = unaligned
			continue
		}

		start, end, found := findExact(runes, surface, cursor)
		if !found {
			start, end, found = findNormalized(runes, surface, cursor)
		}

		if !found {
			offsets[i] = unaligned
			misses++
			continue
		}

		offsets[i] = Offset{Start: start, End: end}
		cursor = end
	}

	return Result{Offsets: offsets, Misses: misses}
}

func hasAlphanumeric(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// findExact searches for surface as an exact run of code points at or
// after cursor, returning the leftmost occurrence.
func findExact(runes []rune, surface string, cursor int) (start, end int, ok bool) {
	if surface == "" {
		return 0, 0, false
	}
	want := []rune(surface)
	n := len(runes)
	m := len(want)
	if m == 0 {
		return 0, 0, false
	}
	for i := cursor; i+m <= n; i++ {
		if runesEqual(runes[i:i+m], want) {
			return i, i + m, true
		}
	}
	return 0, 0, false
}

// findNormalized retries the search with runs of whitespace collapsed to a
// single space in both text and surface, within a bounded look-ahead
// window past the cursor.
func findNormalized(runes []rune, surface string, cursor int) (start, end int, ok bool) {
	normSurface := collapseWhitespace(surface)
	if normSurface == "" {
		return 0, 0, false
	}

	limit := cursor + lookAheadWindow
	if limit > len(runes) {
		limit = len(runes)
	}

	window := runes[cursor:limit]
	windowText := string(window)
	normText, mapping := collapseWhitespaceWithMapping(windowText)

	idx := strings.Index(normText, normSurface)
	if idx < 0 {
		return 0, 0, false
	}

	normWant := []rune(normSurface)
	startNorm := []rune(normText[:idx])
	startOrig := mapping[len(startNorm)]
	endOrig := mapping[len(startNorm)+len(normWant)]

	return cursor + startOrig, cursor + endOrig, true
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// collapseWhitespaceWithMapping collapses runs of whitespace in s to a
// single space and returns the collapsed string along with a mapping from
// rune index in the collapsed string to rune index in the original string
// (mapping has len(collapsed)+1 entries, the last being len(s) in runes).
func collapseWhitespaceWithMapping(s string) (string, []int) {
	runes := []rune(s)
	var out []rune
	mapping := make([]int, 0, len(runes)+1)

	inSpace := false
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if inSpace {
				continue
			}
			inSpace = true
			mapping = append(mapping, i)
			out = append(out, ' ')
			continue
		}
		inSpace = false
		mapping = append(mapping, i)
		out = append(out, r)
	}
	mapping = append(mapping, len(runes))

	return string(out), mapping
}
