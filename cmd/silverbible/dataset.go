package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sola-scriptura-search-api/internal/align"
	"github.com/sola-scriptura-search-api/internal/corpus"
	"github.com/sola-scriptura-search-api/internal/model"
	"github.com/sola-scriptura-search-api/internal/pipeline"
	"github.com/sola-scriptura-search-api/internal/rulesengine"
	"github.com/sola-scriptura-search-api/internal/spanbuilder"
	"github.com/sola-scriptura-search-api/internal/split"
)

var (
	flagRulesFile  string
	flagConfigFile string
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Build the annotated silver dataset",
}

var datasetBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Read the corpus, align and label every verse, split, and emit JSONL",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := pipeline.NewLogger(flagLogLevel, flagPretty)
		runID := pipeline.NewRunID().String()

		cfg, err := pipeline.LoadPipelineConfig(flagConfigFile)
		if err != nil {
			return err
		}
		if flagRulesFile != "" {
			cfg.RulesFile = flagRulesFile
		}

		ok, err := pipeline.Confirm(fmt.Sprintf("Build dataset into %q from %q?", cfg.OutputDir, flagDSN), flagYes)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("aborted")
			return nil
		}

		rf, err := rulesengine.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return err
		}
		engine, err := rulesengine.NewEngine(log, rf)
		if err != nil {
			return err
		}

		db, err := openStore(flagDriver, flagDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		reader, err := corpus.NewReader(ctx, db, corpus.Options{
			Driver:       flagDriver,
			TextPrefer:   corpus.TextPreference(cfg.TextPrefer),
			RequireClean: cfg.RequireClean,
		}, log)
		if err != nil {
			return err
		}

		// Holdout books are still read here: they must appear in the
		// holdout partition, so exclusion happens at the splitter, not
		// the reader.
		var examples []model.Example
		totalTokens := 0
		alignmentMisses := 0
		spansByLabel := make(map[string]int)

		for verse, err := range reader.Verses(ctx, nil) {
			if err != nil {
				return err
			}
			verse, misses := align.AlignVerse(verse)
			alignmentMisses += misses
			totalTokens += len(verse.Tokens)

			spans := spanbuilder.Build(verse, engine, cfg.ContiguousMerge)
			for _, s := range spans {
				spansByLabel[s.Label]++
			}
			if spans == nil {
				spans = []model.Span{}
			}

			examples = append(examples, model.Example{
				Text:  verse.Text,
				Spans: spans,
				Meta: map[string]interface{}{
					"book":     verse.Book,
					"chapter":  verse.Chapter,
					"verse":    verse.VerseNum,
					"verse_id": verse.VerseID,
				},
			})
		}

		splitCfg := split.Config{
			Seed: cfg.Seed,
			Ratios: split.Ratios{
				Train: cfg.Ratios[0],
				Dev:   cfg.Ratios[1],
				Test:  cfg.Ratios[2],
			},
			HoldoutBooks: cfg.HoldoutBooks,
			HoldoutName:  cfg.HoldoutName,
		}
		result, err := split.Split(examples, splitCfg)
		if err != nil {
			return err
		}
		if err := split.Emit(result, cfg.OutputDir, cfg.HoldoutName); err != nil {
			return err
		}

		summary := pipeline.NewSummary(runID, len(examples), totalTokens, alignmentMisses)
		summary.SpansByLabel = spansByLabel
		summary.PartitionSizes = map[string]int{
			"train": len(result.Train),
			"dev":   len(result.Dev),
			"test":  len(result.Test),
		}
		if len(result.Holdout) > 0 {
			summary.PartitionSizes[cfg.HoldoutName] = len(result.Holdout)
		}
		summary.WriteTerminal(os.Stdout)

		return pipeline.WriteTextfileMetrics(summary, cfg.OutputDir+"/dataset_build.prom")
	},
}

func init() {
	datasetBuildCmd.Flags().StringVar(&flagRulesFile, "rules-file", "", "path to the label rules file (overrides config)")
	datasetBuildCmd.Flags().StringVar(&flagConfigFile, "config", "", "path to pipeline.yaml (defaults to ./pipeline.yaml)")
	datasetCmd.AddCommand(datasetBuildCmd)
}
