package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/frontier/pkg/log"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "controllerd",
	Short: "Frontier accounting controller for a streaming differential-dataflow store",
	Long: `controllerd tracks the read and write frontiers of a set of durably
persisted collections, coordinating compare-and-append writes and
compaction-safe since advancement across storage workers.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("controllerd version %s\ncommit: %s\n", Version, Commit))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to controller.yaml (defaults built in if unset)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("controllerd version %s (%s)\n", Version, Commit)
		return nil
	},
}

func initLogging(level log.Level, jsonOutput bool) {
	log.Init(log.Config{Level: level, JSONOutput: jsonOutput})
}
