// Package model holds the immutable records shared across the pipeline:
// Token, Verse, Span, Example, SchemaInfo, and the embedding metadata row.
package model

import "strconv"

// Offset is a half-open character range, measured in Unicode code points.
// (-1, -1) is the sentinel used for an unaligned token.
type Offset struct {
	Start int
	End   int
}

// Unaligned is the sentinel offset recorded when a token could not be
// located in its verse's text.
var Unaligned = Offset{Start: -1, End: -1}

// IsAligned reports whether o is a real (non-sentinel) offset.
func (o Offset) IsAligned() bool {
	return o.Start >= 0 && o.End >= 0
}

// Token is one morphologically analyzed word in a verse. Tokens are owned
// by their Verse, created by the Corpus Reader, and immutable thereafter.
type Token struct {
	// Index is the store-provided, monotonically increasing position of
	// this token within its verse.
	Index int

	// Surface is the display string as it appears (or nearly appears) in
	// the verse text.
	Surface string

	// StrongsID is the normalized lexicon key (see rulesengine.NormalizeStrongs),
	// or "" if the token carries none.
	StrongsID string

	// Lemma is the original-language dictionary form, or "" if absent.
	Lemma string

	// POS is an optional coarse part-of-speech category, or "" if absent.
	POS string
}

// HasStrongs reports whether the token carries a Strong's key.
func (t Token) HasStrongs() bool { return t.StrongsID != "" }

// HasLemma reports whether the token carries a lemma.
func (t Token) HasLemma() bool { return t.Lemma != "" }

// Verse is a canonical Scripture passage with stable identity (book,
// chapter, verse) and a store-assigned integer VerseID. AlignSpans is
// populated by the Aligner and is parallel to Tokens once set.
type Verse struct {
	Book     string
	Chapter  int
	VerseNum int
	VerseID  int64

	Text   string
	Tokens []Token

	// AlignSpans is nil until the Aligner has run; afterwards
	// len(AlignSpans) == len(Tokens).
	AlignSpans []Offset
}

// Reference renders the canonical "<Book> <chapter>:<verse>" citation form.
func (v Verse) Reference() string {
	return v.Book + " " + strconv.Itoa(v.Chapter) + ":" + strconv.Itoa(v.VerseNum)
}

// Aligned reports whether the Aligner has populated AlignSpans consistently
// with Tokens.
func (v Verse) Aligned() bool {
	return v.AlignSpans != nil && len(v.AlignSpans) == len(v.Tokens)
}

// Span is a half-open character range [Start, End) into a verse's Text,
// carrying a single label. Spans within one Verse are disjoint.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Example is an emission-ready annotated record produced per verse.
type Example struct {
	Text  string                 `json:"text"`
	Spans []Span                 `json:"spans"`
	Meta  map[string]interface{} `json:"meta"`
}

// SchemaInfo describes which text columns the backing verse store exposes
// and which one the Corpus Reader resolved to use.
type SchemaInfo struct {
	HasTextPlain   bool
	HasTextClean   bool
	HasTextGeneric bool
	ResolvedColumn string
}

// EmbeddingMeta is the metadata row persisted alongside one matrix row in
// the Embedding Index: book/chapter/verse/reference/text for a single verse.
type EmbeddingMeta struct {
	Book      string `json:"book"`
	Chapter   int    `json:"chapter"`
	Verse     int    `json:"verse"`
	Reference string `json:"reference"`
	Text      string `json:"text"`
}
