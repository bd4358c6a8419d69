// Package spanbuilder combines per-token labels, phrase labels, and
// phrase-override labels into a minimal, non-overlapping list of Spans
// for one verse.
package spanbuilder

import (
	"unicode"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
)

// Build produces the spans for an already-aligned verse. contiguousMerge
// controls whether adjacent same-label positions merge into one span; the
// dataset build command passes the pipeline config's contiguous_merge value.
func Build(v model.Verse, engine *rulesengine.Engine, contiguousMerge bool) []model.Span {
	if !v.Aligned() || len(v.Tokens) == 0 {
		return nil
	}

	phraseLabels, overrideLabels := engine.MatchPhrases(v.Tokens)
	miss := engine.LabelOnMiss()

	effective := make([]string, len(v.Tokens))
	for i, t := range v.Tokens {
		if !v.AlignSpans[i].IsAligned() {
			continue
		}

		if overrideLabels[i] != "" {
			effective[i] = overrideLabels[i]
			continue
		}
		if phraseLabels[i] != "" {
			effective[i] = phraseLabels[i]
			continue
		}
		if label, ok := engine.LabelToken(t); ok {
			effective[i] = label
			continue
		}
		if miss != "" {
			effective[i] = miss
		}
	}

	if !contiguousMerge {
		return spansWithoutMerge(v, effective)
	}
	return spansWithMerge(v, effective)
}

func spansWithoutMerge(v model.Verse, effective []string) []model.Span {
	var spans []model.Span
	for i, label := range effective {
		if label == "" {
			continue
		}
		off := v.AlignSpans[i]
		spans = append(spans, model.Span{Start: off.Start, End: off.End, Label: label})
	}
	return spans
}

func spansWithMerge(v model.Verse, effective []string) []model.Span {
	var spans []model.Span
	n := len(effective)

	i := 0
	for i < n {
		label := effective[i]
		if label == "" {
			i++
			continue
		}
		off := v.AlignSpans[i]
		start, end := off.Start, off.End

		j := i + 1
		for j < n && effective[j] == label && v.AlignSpans[j].IsAligned() && adjacent(v.Text, end, v.AlignSpans[j].Start) {
			end = v.AlignSpans[j].End
			j++
		}

		spans = append(spans, model.Span{Start: start, End: end, Label: label})
		i = j
	}
	return spans
}

// adjacent reports whether the text between two token offsets (exclusive
// of both) contains only whitespace, i.e. the tokens are adjacent in the
// surface text with no intervening non-whitespace.
func adjacent(text string, prevEnd, nextStart int) bool {
	if nextStart < prevEnd {
		return false
	}
	runes := []rune(text)
	if prevEnd < 0 || nextStart > len(runes) {
		return false
	}
	for _, r := range runes[prevEnd:nextStart] {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
