package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/reconciler"
)

var organizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Classify album folders and move them between tiers",
	Long: `Scan the downloads, incomplete and not-owned roots, classify each
album folder against the wanted list, and move complete albums into the
not-owned tier. Incomplete albums are demoted, duplicates and copies of
owned tracks are removed, and starred material is never touched.`,
	RunE: runOrganizeCmd,
}

func init() {
	rootCmd.AddCommand(organizeCmd)
}

func runOrganizeCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := reconciler.New(a.cfg.Library, a.lidarr, a.starredSource(), a.expiry, a.bus, a.actions,
		a.logger.With("component", "reconciler"))
	sum, err := rec.Run(ctx)
	if err != nil {
		return err
	}
	printOrganizeSummary(sum)
	return nil
}

func printOrganizeSummary(sum reconciler.Summary) {
	fmt.Println()
	if sum.Interrupted {
		fmt.Println(warnColor.Sprint("Organize interrupted, partial results:"))
	} else {
		fmt.Println("Organize complete:")
	}
	fmt.Printf("  Folders scanned:    %d\n", sum.FoldersScanned)
	fmt.Printf("  Promoted:           %s\n", okColor.Sprintf("%d", sum.Promoted))
	fmt.Printf("  Demoted:            %d\n", sum.Demoted)
	fmt.Printf("  Retained:           %d\n", sum.Retained)
	if sum.Unclassified > 0 {
		fmt.Printf("  Unclassified:       %s\n", warnColor.Sprintf("%d", sum.Unclassified))
	}
	if sum.DuplicatesRemoved > 0 {
		fmt.Printf("  Duplicates removed: %d\n", sum.DuplicatesRemoved)
	}
	if sum.OwnedDuplicates > 0 {
		fmt.Printf("  Owned copies freed: %d\n", sum.OwnedDuplicates)
	}
	if sum.Vetoed > 0 {
		fmt.Printf("  Vetoed by stars:    %d\n", sum.Vetoed)
	}
	if sum.EmptyDirsRemoved > 0 {
		fmt.Printf("  Empty dirs pruned:  %d\n", sum.EmptyDirsRemoved)
	}
	if sum.Failed > 0 {
		fmt.Printf("  Failed:             %s\n", failColor.Sprintf("%d", sum.Failed))
	}
}
