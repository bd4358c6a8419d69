package align

import "github.com/sola-scriptura-search-api/internal/model"

// AlignVerse runs Align over v's tokens and returns v with AlignSpans
// populated, satisfying the invariant len(AlignSpans) == len(Tokens). It
// returns the number of alignment misses alongside the updated verse.
func AlignVerse(v model.Verse) (model.Verse, int) {
	surfaces := make([]string, len(v.Tokens))
	for i, t := range v.Tokens {
		surfaces[i] = t.Surface
	}

	result := Align(v.Text, surfaces)

	v.AlignSpans = make([]model.Offset, len(result.Offsets))
	for i, o := range result.Offsets {
		v.AlignSpans[i] = model.Offset{Start: o.Start, End: o.End}
	}
	return v, result.Misses
}
