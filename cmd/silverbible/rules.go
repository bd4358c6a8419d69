package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and bootstrap the label rules file",
}

var rulesLintCmd = &cobra.Command{
	Use:   "lint <rules-file>",
	Short: "Load a rules file and report enabled labels and gazetteer warnings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := pipeline.NewLogger(flagLogLevel, flagPretty)

		rf, err := rulesengine.LoadRulesFile(args[0])
		if err != nil {
			return err
		}
		engine, err := rulesengine.NewEngine(log, rf)
		if err != nil {
			return err
		}

		labels := engine.EnabledLabels()
		fmt.Printf("%d enabled labels:\n", len(labels))
		for label := range labels {
			fmt.Printf("  %s\n", label)
		}
		fmt.Printf("contiguous_merge=%v label_on_miss=%q\n", engine.ContiguousMerge(), engine.LabelOnMiss())

		report := engine.LoadReport
		fmt.Printf("gazetteers: %d files, %d entries, %d malformed lines, %d warnings\n",
			report.FilesLoaded, report.EntriesLoaded, report.MalformedLines, len(report.Warnings))
		for _, w := range report.Warnings {
			fmt.Printf("  WARN %s: %s\n", w.File, w.Message)
		}
		return nil
	},
}

// seedGazetteer is one illustrative starter term list for a label: short,
// hand-picked surface terms rather than ranked verse lists, since a
// gazetteer is a term list, not a citation list.
type seedGazetteer struct {
	label string
	terms []string
}

var seedGazetteers = []seedGazetteer{
	{
		label: "DEITY",
		terms: []string{
			"God", "LORD", "Yahweh", "Jehovah", "Almighty", "Most High",
			"Father", "Holy Spirit", "Elohim", "Adonai",
		},
	},
	{
		label: "MESSIANIC",
		terms: []string{
			"Messiah", "Christ", "Son of David", "Son of Man",
			"Lamb of God", "Redeemer", "Anointed One", "Branch",
		},
	},
	{
		label: "SALVATION",
		terms: []string{
			"grace", "justified", "redemption", "born again",
			"eternal life", "saved", "regeneration", "atonement",
		},
	},
}

var rulesSeedCmd = &cobra.Command{
	Use:   "seed-gazetteers <output-dir>",
	Short: "Write starter gazetteer files for a handful of illustrative labels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for _, g := range seedGazetteers {
			path := filepath.Join(dir, fmt.Sprintf("%s.txt", label2file(g.label)))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(f)
			fmt.Fprintf(w, "# starter gazetteer for %s\n", g.label)
			for _, term := range g.terms {
				fmt.Fprintln(w, term)
			}
			if err := w.Flush(); err != nil {
				f.Close()
				return err
			}
			f.Close()
			fmt.Printf("wrote %s (%d terms)\n", path, len(g.terms))
		}
		return nil
	},
}

func label2file(label string) string {
	out := make([]byte, 0, len(label))
	for _, r := range label {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, byte(r))
	}
	return string(out)
}

var rulesAuditCmd = &cobra.Command{
	Use:   "audit <rules-file> <dataset-dir>",
	Short: "Report which enabled labels matched zero spans across a built dataset",
	Long: `audit compares the rules file's enabled label set against the spans
actually present in train.jsonl/dev.jsonl/test.jsonl under dataset-dir.
A label that is enabled but never produced a span usually means its
Strong's ids, lemmas, or gazetteers silently match nothing.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := pipeline.NewLogger(flagLogLevel, flagPretty)

		rf, err := rulesengine.LoadRulesFile(args[0])
		if err != nil {
			return err
		}
		engine, err := rulesengine.NewEngine(log, rf)
		if err != nil {
			return err
		}

		observed := make(map[string]int)
		for _, name := range []string{"train.jsonl", "dev.jsonl", "test.jsonl"} {
			path := filepath.Join(args[1], name)
			if err := countSpanLabels(path, observed); err != nil && !os.IsNotExist(err) {
				return err
			}
		}

		var missing []string
		for label := range engine.EnabledLabels() {
			if observed[label] == 0 {
				missing = append(missing, label)
			}
		}

		fmt.Printf("observed spans for %d/%d enabled labels\n", len(engine.EnabledLabels())-len(missing), len(engine.EnabledLabels()))
		for label, count := range observed {
			fmt.Printf("  %-20s %d\n", label, count)
		}
		if len(missing) > 0 {
			fmt.Println("labels with zero matches (silent misses):")
			for _, label := range missing {
				fmt.Printf("  %s\n", label)
			}
		}
		return nil
	},
}

func countSpanLabels(path string, observed map[string]int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ex model.Example
		if err := json.Unmarshal(scanner.Bytes(), &ex); err != nil {
			continue
		}
		for _, span := range ex.Spans {
			observed[span.Label]++
		}
	}
	return scanner.Err()
}

func init() {
	rulesCmd.AddCommand(rulesLintCmd, rulesSeedCmd, rulesAuditCmd)
}
