package rulesengine

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/sola-scriptura-search-api/internal/pipeline"
)

// RuleConfig is one enabled label's configuration as read from the rules
// file's `rules.{LABEL}` section.
type RuleConfig struct {
	StrongsIDs     []string `koanf:"strongs_ids"`
	Lemmas         []string `koanf:"lemmas"`
	Surfaces       []string `koanf:"surfaces"`
	CaseSensitive  bool     `koanf:"case_sensitive"`
	GazetteerFiles []string `koanf:"gazetteer_files"`
}

// PhraseConfig is one multi-token phrase rule.
type PhraseConfig struct {
	Surfaces      []string `koanf:"surfaces"`
	Label         string   `koanf:"label"`
	CaseSensitive bool     `koanf:"case_sensitive"`
	Override      bool     `koanf:"override"`
}

// RulesFile is the parsed label-rules document.
type RulesFile struct {
	Labels struct {
		Enabled  []string `koanf:"enabled"`
		Disabled []string `koanf:"disabled"`
	} `koanf:"labels"`

	Rules map[string]RuleConfig `koanf:"rules"`

	Conflicts struct {
		Priority []string `koanf:"priority"`
	} `koanf:"conflicts"`

	Merging struct {
		ContiguousMerge bool `koanf:"contiguous_merge"`
	} `koanf:"merging"`

	Phrases struct {
		Entries        []PhraseConfig `koanf:"entries"`
		OverrideLabels []string       `koanf:"override_labels"`
	} `koanf:"phrases"`

	LabelOnMiss string `koanf:"label_on_miss"`
}

// LoadRulesFile reads and parses a YAML rules file at path.
func LoadRulesFile(path string) (*RulesFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, pipeline.ConfigError(fmt.Sprintf("load rules file %q", path), "path", path, "cause", err.Error())
	}

	var rf RulesFile
	if err := k.Unmarshal("", &rf); err != nil {
		return nil, pipeline.ConfigError(fmt.Sprintf("parse rules file %q", path), "path", path, "cause", err.Error())
	}
	return &rf, nil
}

// enabledSet returns the effective set of enabled labels. A label listed
// in both labels.enabled and labels.disabled stays enabled — enabled takes
// precedence; the disabled list exists so a rules file can park a label's
// configuration without deleting it.
func (rf *RulesFile) enabledSet() ([]string, error) {
	seen := make(map[string]bool)
	var enabled []string
	for _, l := range rf.Labels.Enabled {
		if seen[l] {
			continue
		}
		seen[l] = true
		enabled = append(enabled, l)
	}

	if len(enabled) == 0 {
		return nil, pipeline.ConfigError("rules file has an empty enabled label set")
	}
	return enabled, nil
}

// priorityIndex builds the label -> priority rank map used for conflict
// resolution (lower index = higher priority). Labels not mentioned in
// conflicts.priority sort after every label that is, in enabled-list order,
// so a rules file need not enumerate every label if ties don't matter to it.
func (rf *RulesFile) priorityIndex(enabled []string) (map[string]int, error) {
	seenPriority := make(map[string]bool, len(rf.Conflicts.Priority))
	for _, l := range rf.Conflicts.Priority {
		if seenPriority[l] {
			return nil, pipeline.ConfigError(fmt.Sprintf("label %q repeated in conflicts.priority", l))
		}
		seenPriority[l] = true
	}

	index := make(map[string]int, len(enabled))
	rank := 0
	for _, l := range rf.Conflicts.Priority {
		index[l] = rank
		rank++
	}
	// Any enabled label missing from the explicit list keeps encounter
	// order from labels.enabled, after every explicitly prioritized label.
	for _, l := range enabled {
		if _, ok := index[l]; !ok {
			index[l] = rank
			rank++
		}
	}
	return index, nil
}
