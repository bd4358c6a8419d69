package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sola-scriptura-search-api/internal/corpus/migrations"
)

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the verse/token store schema",
}

var corpusMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := migrations.New(flagDriver, flagDSN)
		if err != nil {
			return err
		}
		defer mg.Close()
		if err := mg.Up(); err != nil {
			return err
		}
		version, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Printf("schema at version %d (dirty=%v)\n", version, dirty)
		return nil
	},
}

var corpusMigrateDownCmd = &cobra.Command{
	Use:   "migrate-down",
	Short: "Roll back every schema migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := migrations.New(flagDriver, flagDSN)
		if err != nil {
			return err
		}
		defer mg.Close()
		return mg.Down()
	},
}

var corpusStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current schema migration version",
	RunE: func(cmd *cobra.Command, args []string) error {
		mg, err := migrations.New(flagDriver, flagDSN)
		if err != nil {
			return err
		}
		defer mg.Close()
		version, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return nil
	},
}

func init() {
	corpusCmd.AddCommand(corpusMigrateCmd, corpusMigrateDownCmd, corpusStatusCmd)
}
