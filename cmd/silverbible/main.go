// Command silverbible runs the silver annotation and semantic retrieval
// pipeline: corpus migration, dataset build, embedding index build and
// export, and retrieval queries. Every subcommand is a synchronous batch
// operation; there is no server mode. The one concurrent step is `index
// build --pretty`, which encodes on a worker goroutine while the progress
// display runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDriver   string
	flagDSN      string
	flagLogLevel string
	flagPretty   bool
	flagYes      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "silverbible",
		Short: "Silver annotation and semantic retrieval engine for the biblical corpus",
		Long: `silverbible builds a silver-standard NER training dataset and a semantic
retrieval index from a morphologically annotated verse/token store,
per the rules-engine + aligner + span-builder + splitter pipeline.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagDriver, "driver", "postgres", "verse/token store driver: postgres or sqlite3")
	rootCmd.PersistentFlags().StringVar(&flagDSN, "dsn", os.Getenv("DATABASE_URL"), "verse/token store connection string")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", isTTY(), "use human-readable console logging")
	rootCmd.PersistentFlags().BoolVar(&flagYes, "yes", false, "assume yes for interactive confirmations")

	rootCmd.AddCommand(corpusCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(retrieveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
