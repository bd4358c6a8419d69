package rulesengine_test

import (
	"github.com/rs/zerolog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
)

var _ = Describe("Engine single-token labeling", func() {
	var rf *rulesengine.RulesFile

	BeforeEach(func() {
		rf = &rulesengine.RulesFile{}
		rf.Labels.Enabled = []string{"DEITY", "MESSIANIC"}
		rf.Rules = map[string]rulesengine.RuleConfig{
			"DEITY":     {StrongsIDs: []string{"h430"}, Lemmas: []string{"elohim"}, Surfaces: []string{"God"}},
			"MESSIANIC": {Surfaces: []string{"Messiah"}},
		}
	})

	It("matches on Strong's id ahead of lemma and surface", func() {
		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		label, ok := engine.LabelToken(model.Token{Surface: "God", StrongsID: "H0430", Lemma: "elohim"})
		Expect(ok).To(BeTrue())
		Expect(label).To(Equal("DEITY"))
	})

	It("falls back to lemma when no Strong's id is present", func() {
		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		label, ok := engine.LabelToken(model.Token{Surface: "gods", Lemma: "elohim"})
		Expect(ok).To(BeTrue())
		Expect(label).To(Equal("DEITY"))
	})

	It("falls back to surface when neither Strong's id nor lemma match", func() {
		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		label, ok := engine.LabelToken(model.Token{Surface: "Messiah"})
		Expect(ok).To(BeTrue())
		Expect(label).To(Equal("MESSIANIC"))
	})

	It("reports no match for a token matching nothing", func() {
		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		_, ok := engine.LabelToken(model.Token{Surface: "boat"})
		Expect(ok).To(BeFalse())
	})

	It("resolves a tied Strong's id by conflicts.priority", func() {
		rf.Rules["MESSIANIC"] = rulesengine.RuleConfig{StrongsIDs: []string{"h430"}}
		rf.Conflicts.Priority = []string{"MESSIANIC", "DEITY"}

		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		label, ok := engine.LabelToken(model.Token{StrongsID: "H0430"})
		Expect(ok).To(BeTrue())
		Expect(label).To(Equal("MESSIANIC"))
	})

	It("rejects an empty enabled label set", func() {
		empty := &rulesengine.RulesFile{}
		_, err := rulesengine.NewEngine(zerolog.Nop(), empty)
		Expect(err).To(HaveOccurred())
		Expect(pipeline.IsCode(err, pipeline.CodeConfigError)).To(BeTrue())
	})
})

var _ = Describe("Engine phrase matching", func() {
	It("prefers the longest match when phrases overlap", func() {
		rf := &rulesengine.RulesFile{}
		rf.Labels.Enabled = []string{"SHORT", "LONG"}
		rf.Phrases.Entries = []rulesengine.PhraseConfig{
			{Surfaces: []string{"Son", "of"}, Label: "SHORT"},
			{Surfaces: []string{"Son", "of", "Man"}, Label: "LONG"},
		}

		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		tokens := []model.Token{{Surface: "Son"}, {Surface: "of"}, {Surface: "Man"}}
		labels, _ := engine.MatchPhrases(tokens)
		Expect(labels).To(Equal([]string{"LONG", "LONG", "LONG"}))
	})

	It("marks override phrase positions separately from plain phrase labels", func() {
		rf := &rulesengine.RulesFile{}
		rf.Labels.Enabled = []string{"MESSIANIC"}
		rf.Phrases.Entries = []rulesengine.PhraseConfig{
			{Surfaces: []string{"Son", "of", "God"}, Label: "MESSIANIC", Override: true},
		}

		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		tokens := []model.Token{{Surface: "Son"}, {Surface: "of"}, {Surface: "God"}}
		phraseLabels, overrideLabels := engine.MatchPhrases(tokens)
		Expect(phraseLabels).To(Equal([]string{"MESSIANIC", "MESSIANIC", "MESSIANIC"}))
		Expect(overrideLabels).To(Equal([]string{"MESSIANIC", "MESSIANIC", "MESSIANIC"}))
	})

	It("does not match phrases longer than the token stream", func() {
		rf := &rulesengine.RulesFile{}
		rf.Labels.Enabled = []string{"LONG"}
		rf.Phrases.Entries = []rulesengine.PhraseConfig{
			{Surfaces: []string{"Son", "of", "Man"}, Label: "LONG"},
		}

		engine, err := rulesengine.NewEngine(zerolog.Nop(), rf)
		Expect(err).NotTo(HaveOccurred())

		labels, _ := engine.MatchPhrases([]model.Token{{Surface: "Son"}, {Surface: "of"}})
		Expect(labels).To(Equal([]string{"", ""}))
	})
})
