package rulesengine

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sola-scriptura-search-api/internal/model"
)

// compiledRule is a label's rule set after gazetteer expansion and case
// normalization, ready for O(1) lookups.
type compiledRule struct {
	label         string
	strongs       map[string]bool
	lemmas        map[string]bool
	surfacesCI    map[string]bool // lower-cased surfaces, used when !caseSensitive
	surfacesCS    map[string]bool // verbatim surfaces, used when caseSensitive
	caseSensitive bool
}

func (c *compiledRule) matchesSurface(surface string) bool {
	if c.caseSensitive {
		return c.surfacesCS[surface]
	}
	return c.surfacesCI[strings.ToLower(surface)]
}

// compiledPhrase is a phrase rule after case normalization.
type compiledPhrase struct {
	tokens        []string // normalized per caseSensitive
	label         string
	override      bool
	caseSensitive bool
	declOrder     int
}

// Engine is the immutable, constructed-once Rules Engine: it resolves
// per-token labels and phrase/override labels against a priority-ordered
// taxonomy. Safe for concurrent read-only use once built.
type Engine struct {
	enabled     map[string]bool
	order       []string       // declaration order from labels.enabled, for tie-break
	priority    map[string]int // lower = higher priority
	rules       map[string]*compiledRule
	phrases     []*compiledPhrase
	overrideSet map[string]bool
	labelOnMiss string
	contigMerge bool
	LoadReport  *LoadReport
}

// ContiguousMerge reports whether merging.contiguous_merge was enabled in
// the rules file.
func (e *Engine) ContiguousMerge() bool { return e.contigMerge }

// LabelOnMiss returns the label_on_miss configuration value, "" if absent.
func (e *Engine) LabelOnMiss() string { return e.labelOnMiss }

// EnabledLabels returns the resolved enabled-label set.
func (e *Engine) EnabledLabels() map[string]bool { return e.enabled }

// NewEngine constructs an Engine from a parsed rules file, loading every
// referenced gazetteer. Fatal configuration problems (empty enabled set,
// malformed priority list) are returned as errors tagged ConfigError;
// gazetteer problems are aggregated into the returned LoadReport and never
// fail construction.
func NewEngine(log zerolog.Logger, rf *RulesFile) (*Engine, error) {
	enabledList, err := rf.enabledSet()
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(enabledList))
	for _, l := range enabledList {
		enabled[l] = true
	}

	priority, err := rf.priorityIndex(enabledList)
	if err != nil {
		return nil, err
	}

	report := &LoadReport{}
	rules := make(map[string]*compiledRule, len(enabledList))
	for _, label := range enabledList {
		rc, ok := rf.Rules[label]
		if !ok {
			// An enabled label with no rules.<LABEL> section matches
			// nothing directly but can still be reached via phrases.
			rules[label] = &compiledRule{label: label, strongs: map[string]bool{}, lemmas: map[string]bool{}, surfacesCI: map[string]bool{}, surfacesCS: map[string]bool{}}
			continue
		}

		cr := &compiledRule{
			label:         label,
			caseSensitive: rc.CaseSensitive,
			strongs:       make(map[string]bool, len(rc.StrongsIDs)),
			lemmas:        make(map[string]bool, len(rc.Lemmas)),
			surfacesCI:    map[string]bool{},
			surfacesCS:    map[string]bool{},
		}
		for _, s := range rc.StrongsIDs {
			cr.strongs[NormalizeStrongs(s)] = true
		}
		for _, l := range rc.Lemmas {
			cr.lemmas[l] = true
		}
		addSurface := func(s string) {
			if rc.CaseSensitive {
				cr.surfacesCS[s] = true
			} else {
				cr.surfacesCI[strings.ToLower(s)] = true
			}
		}
		for _, s := range rc.Surfaces {
			addSurface(s)
		}
		gazEntries := loadGazetteers(rc.GazetteerFiles, report)
		for _, s := range gazEntries {
			addSurface(s)
		}
		rules[label] = cr
	}
	report.logWarnings(log)

	overrideSet := make(map[string]bool, len(rf.Phrases.OverrideLabels))
	for _, l := range rf.Phrases.OverrideLabels {
		overrideSet[l] = true
	}

	phrases := make([]*compiledPhrase, 0, len(rf.Phrases.Entries))
	for i, p := range rf.Phrases.Entries {
		if !enabled[p.Label] {
			continue
		}
		override := p.Override || overrideSet[p.Label]
		toks := make([]string, len(p.Surfaces))
		for j, s := range p.Surfaces {
			if p.CaseSensitive {
				toks[j] = s
			} else {
				toks[j] = strings.ToLower(s)
			}
		}
		phrases = append(phrases, &compiledPhrase{
			tokens:        toks,
			label:         p.Label,
			override:      override,
			caseSensitive: p.CaseSensitive,
			declOrder:     i,
		})
	}

	return &Engine{
		enabled:     enabled,
		order:       enabledList,
		priority:    priority,
		rules:       rules,
		phrases:     phrases,
		overrideSet: overrideSet,
		labelOnMiss: rf.LabelOnMiss,
		contigMerge: rf.Merging.ContiguousMerge,
		LoadReport:  report,
	}, nil
}

// candidate is an internal match result before priority resolution.
type candidate struct {
	label    string
	priority int
}

func (e *Engine) betterCandidate(a, b candidate) candidate {
	if b.priority < a.priority {
		return b
	}
	return a
}

// LabelToken returns the single-token label for t, matching in tiers:
// Strong's, then lemma, then surface. ok is false if no
// rule matched (the label_on_miss behavior, if any, is the caller's
// responsibility — LabelToken itself never returns labelOnMiss).
func (e *Engine) LabelToken(t model.Token) (label string, ok bool) {
	var best *candidate

	consider := func(l string) {
		p, present := e.priority[l]
		if !present {
			return
		}
		c := candidate{label: l, priority: p}
		if best == nil {
			best = &c
			return
		}
		merged := e.betterCandidate(*best, c)
		best = &merged
	}

	if t.HasStrongs() {
		normalized := t.StrongsID
		for _, label := range e.order {
			if e.rules[label].strongs[normalized] {
				consider(label)
			}
		}
		if best != nil {
			return best.label, true
		}
	}

	if t.HasLemma() {
		for _, label := range e.order {
			if e.rules[label].lemmas[t.Lemma] {
				consider(label)
			}
		}
		if best != nil {
			return best.label, true
		}
	}

	if t.Surface != "" {
		for _, label := range e.order {
			if e.rules[label].matchesSurface(t.Surface) {
				consider(label)
			}
		}
		if best != nil {
			return best.label, true
		}
	}

	return "", false
}

// phraseHit is one resolved phrase match spanning [Start, End) token
// positions (End exclusive), carrying its label and override flag.
type phraseHit struct {
	Start, End int
	Label      string
	Override   bool
}

// MatchPhrases finds every phrase match across tokens, resolves overlaps
// by longest-match-first then priority, and returns a position
// -> label map for regular phrase labels and a position -> label map for
// override phrase labels (the latter is a subset restricted to labels in
// phrases.override_labels or entries marked override).
func (e *Engine) MatchPhrases(tokens []model.Token) (phraseLabel []string, overrideLabel []string) {
	n := len(tokens)
	phraseLabel = make([]string, n)
	overrideLabel = make([]string, n)
	if n == 0 || len(e.phrases) == 0 {
		return phraseLabel, overrideLabel
	}

	type scoredHit struct {
		hit       phraseHit
		length    int
		priority  int
		declOrder int
		start     int
	}

	var hits []scoredHit
	for _, p := range e.phrases {
		k := len(p.tokens)
		if k == 0 || k > n {
			continue
		}
		for i := 0; i+k <= n; i++ {
			if phraseMatchesAt(tokens, i, p) {
				hits = append(hits, scoredHit{
					hit:       phraseHit{Start: i, End: i + k, Label: p.label, Override: p.override},
					length:    k,
					priority:  e.priority[p.label],
					declOrder: p.declOrder,
					start:     i,
				})
			}
		}
	}

	// Resolve overlaps: longest match first, then higher priority
	// (lower rank number), then first rule declared, then leftmost start —
	// a stable sort on these keys followed by greedy first-wins claiming
	// implements exactly that order.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].length != hits[j].length {
			return hits[i].length > hits[j].length
		}
		if hits[i].priority != hits[j].priority {
			return hits[i].priority < hits[j].priority
		}
		if hits[i].declOrder != hits[j].declOrder {
			return hits[i].declOrder < hits[j].declOrder
		}
		return hits[i].start < hits[j].start
	})

	claimed := make([]*phraseHit, n)
	for idx := range hits {
		h := hits[idx].hit
		free := true
		for pos := h.Start; pos < h.End; pos++ {
			if claimed[pos] != nil {
				free = false
				break
			}
		}
		if !free {
			continue
		}
		for pos := h.Start; pos < h.End; pos++ {
			claimed[pos] = &hits[idx].hit
		}
	}

	for pos, h := range claimed {
		if h == nil {
			continue
		}
		phraseLabel[pos] = h.Label
		if h.Override {
			overrideLabel[pos] = h.Label
		}
	}
	return phraseLabel, overrideLabel
}

func phraseMatchesAt(tokens []model.Token, start int, p *compiledPhrase) bool {
	for j, want := range p.tokens {
		got := tokens[start+j].Surface
		if !p.caseSensitive {
			got = strings.ToLower(got)
		}
		if got != want {
			return false
		}
	}
	return true
}

