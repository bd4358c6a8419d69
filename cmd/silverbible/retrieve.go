package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sola-scriptura-search-api/internal/embedindex"
	"github.com/sola-scriptura-search-api/internal/pipeline"
	"github.com/sola-scriptura-search-api/internal/retrieve"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Query a built embedding index",
}

var (
	flagRetrieveIndexDir string
	flagRetrieveTopK     int
	flagRetrieveBook     string
	flagRetrieveThresh   float32
	flagRetrieveJSON     bool
)

func loadRetriever(ctx context.Context) (*retrieve.Retriever, embedindex.Embedder, func(), error) {
	cfg, err := pipeline.LoadPipelineConfig(flagConfigFile)
	if err != nil {
		return nil, nil, nil, err
	}

	idx, err := embedindex.Load(flagRetrieveIndexDir)
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, closeFn, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	retriever, err := retrieve.New(idx, embedder)
	if err != nil {
		if closeFn != nil {
			closeFn()
		}
		return nil, nil, nil, err
	}

	return retriever, embedder, closeFn, nil
}

func printResults(results []retrieve.Result) {
	if flagRetrieveJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(results)
		return
	}
	for _, r := range results {
		fmt.Printf("%-18s %.4f  %s\n", r.Reference, r.Score, r.Text)
	}
}

var retrieveSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over the embedding index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		retriever, _, closeFn, err := loadRetriever(ctx)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}

		results, err := retriever.Search(ctx, args[0], flagRetrieveTopK, flagRetrieveBook, flagRetrieveThresh)
		if err != nil {
			return err
		}
		printResults(results)
		return nil
	},
}

var retrieveXrefCmd = &cobra.Command{
	Use:   "xref <reference>",
	Short: "Find verses semantically similar to a given reference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		retriever, _, closeFn, err := loadRetriever(ctx)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}

		results, err := retriever.CrossReference(ctx, args[0], flagRetrieveTopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("no match for reference %q\n", args[0])
			return nil
		}
		printResults(results)
		return nil
	},
}

var retrieveAskCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Assemble a ranked answer-context block for a question, without generating an answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		retriever, _, closeFn, err := loadRetriever(ctx)
		if err != nil {
			return err
		}
		if closeFn != nil {
			defer closeFn()
		}

		results, contextBlock, err := retriever.AnswerContext(ctx, args[0], flagRetrieveTopK)
		if err != nil {
			return err
		}
		if flagRetrieveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(struct {
				Results []retrieve.Result `json:"results"`
				Context string            `json:"context"`
			}{results, contextBlock})
			return nil
		}
		fmt.Println(contextBlock)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{retrieveSearchCmd, retrieveXrefCmd, retrieveAskCmd} {
		c.Flags().StringVar(&flagRetrieveIndexDir, "index", "dist/index", "embedding index directory")
		c.Flags().IntVar(&flagRetrieveTopK, "top-k", 10, "number of results to return")
		c.Flags().Float32Var(&flagRetrieveThresh, "threshold", 0, "minimum score to include a result (0 disables)")
		c.Flags().BoolVar(&flagRetrieveJSON, "json", false, "emit results as JSON")
		c.Flags().StringVar(&flagConfigFile, "config", "", "path to pipeline.yaml (defaults to ./pipeline.yaml)")
	}
	retrieveSearchCmd.Flags().StringVar(&flagRetrieveBook, "book", "", "restrict results to this book")

	retrieveCmd.AddCommand(retrieveSearchCmd, retrieveXrefCmd, retrieveAskCmd)
}
