package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:   "crate",
	Short: "Music library curation",
	Long: `crate - music library curation

Reconciles a wanted-album source, a peer-to-peer search daemon, a
starred-status server and a three-tier local library:

  sync      search and queue downloads for wanted tracks
  organize  classify album folders and move them between tiers
  cleanup   delete expired albums nobody starred
  watch     follow transfers and release finished reservations

Run 'crated' for the scheduled daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: discovered)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log every decision, mutate nothing")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("crate {{.Version}}\n")
}
