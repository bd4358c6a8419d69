package spanbuilder_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sola-scriptura-search-api/internal/align"
	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
	"github.com/sola-scriptura-search-api/internal/spanbuilder"
)

// These tests run a verse through the full aligner -> rules engine ->
// span builder flow, the way the dataset build command does.

func buildVerse(text string, tokens []model.Token) model.Verse {
	v := model.Verse{Book: "Genesis", Chapter: 1, VerseNum: 1, VerseID: 1, Text: text, Tokens: tokens}
	v, _ = align.AlignVerse(v)
	return v
}

func tokensFromSurfaces(surfaces ...string) []model.Token {
	out := make([]model.Token, len(surfaces))
	for i, s := range surfaces {
		out[i] = model.Token{Index: i, Surface: s}
	}
	return out
}

func TestSingleTokenDeityByStrongs(t *testing.T) {
	rf := &rulesengine.RulesFile{}
	rf.Labels.Enabled = []string{"DEITY"}
	rf.Rules = map[string]rulesengine.RuleConfig{
		"DEITY": {StrongsIDs: []string{"H0430"}},
	}
	rf.Conflicts.Priority = []string{"DEITY"}
	engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
	require.NoError(t, err)

	tokens := tokensFromSurfaces("In", "the", "beginning", "God", "created", "the", "heaven", "and", "the", "earth")
	tokens[3].StrongsID = rulesengine.FirstStrongs("H430")
	v := model.Verse{Text: "In the beginning God created the heaven and the earth.", Tokens: tokens}
	v, misses := align.AlignVerse(v)
	assert.Equal(t, 0, misses)

	spans := spanbuilder.Build(v, engine, true)
	assert.Equal(t, []model.Span{{Start: 17, End: 20, Label: "DEITY"}}, spans)
}

func TestPhraseOverrideMergesKingDavid(t *testing.T) {
	rf := &rulesengine.RulesFile{}
	rf.Labels.Enabled = []string{"DEITY", "PERSON_TITLE", "PERSON"}
	rf.Rules = map[string]rulesengine.RuleConfig{
		"PERSON": {Surfaces: []string{"David"}},
	}
	rf.Conflicts.Priority = []string{"DEITY", "PERSON_TITLE", "PERSON"}
	rf.Phrases.Entries = []rulesengine.PhraseConfig{
		{Surfaces: []string{"King", "David"}, Label: "PERSON_TITLE", Override: true},
	}
	engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
	require.NoError(t, err)

	v := buildVerse("Then King David arose.", tokensFromSurfaces("Then", "King", "David", "arose"))
	spans := spanbuilder.Build(v, engine, true)

	require.Len(t, spans, 1)
	assert.Equal(t, "PERSON_TITLE", spans[0].Label)
	runes := []rune(v.Text)
	assert.Equal(t, "King David", string(runes[spans[0].Start:spans[0].End]))
}

func TestPriorityResolvesStrongsOverSurface(t *testing.T) {
	rf := &rulesengine.RulesFile{}
	rf.Labels.Enabled = []string{"DEITY", "PERSON"}
	rf.Rules = map[string]rulesengine.RuleConfig{
		"DEITY":  {StrongsIDs: []string{"H3068"}},
		"PERSON": {Surfaces: []string{"LORD"}},
	}
	rf.Conflicts.Priority = []string{"DEITY", "PERSON"}
	engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
	require.NoError(t, err)

	tokens := tokensFromSurfaces("the", "LORD", "spoke")
	tokens[1].StrongsID = "H3068"
	v := buildVerse("the LORD spoke", tokens)

	spans := spanbuilder.Build(v, engine, true)
	require.Len(t, spans, 1)
	assert.Equal(t, "DEITY", spans[0].Label)
}

func TestEmittedSpansAreSortedAndDisjoint(t *testing.T) {
	rf := &rulesengine.RulesFile{}
	rf.Labels.Enabled = []string{"DEITY", "PLACE"}
	rf.Rules = map[string]rulesengine.RuleConfig{
		"DEITY": {Surfaces: []string{"God"}},
		"PLACE": {Surfaces: []string{"earth", "heaven"}},
	}
	engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
	require.NoError(t, err)

	v := buildVerse("God created the heaven and the earth.",
		tokensFromSurfaces("God", "created", "the", "heaven", "and", "the", "earth"))
	spans := spanbuilder.Build(v, engine, true)

	require.NotEmpty(t, spans)
	runes := []rune(v.Text)
	for i, s := range spans {
		assert.Less(t, s.Start, s.End)
		assert.LessOrEqual(t, s.End, len(runes))
		assert.NotEmpty(t, string(runes[s.Start:s.End]))
		if i > 0 {
			assert.GreaterOrEqual(t, s.Start, spans[i-1].End, "spans must be disjoint and sorted")
		}
	}
}
