package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/expiry"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete expired not-owned albums",
	Long: `Delete not-owned albums that have sat unlistened past the retention
period. An album star vetoes the whole deletion; a track star keeps that
file while the rest of the album goes. Deleted albums are unmonitored in
Lidarr so they are not re-queued.

Requires Navidrome: without a starred snapshot there is no protection
signal, and cleanup refuses to guess.`,
	RunE: runCleanupCmd,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanupCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !a.cfg.Cleanup.Enabled {
		return errors.New("cleanup is disabled in config")
	}
	if a.navidrome == nil {
		return errors.New("cleanup requires navidrome: no starred snapshot means no protection signal")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := expiry.NewCleaner(a.expiry, a.navidrome, a.lidarr, a.bus, a.actions,
		a.retention(), a.logger.With("component", "cleaner"))
	sum, err := c.Run(ctx)
	if err != nil {
		return err
	}
	printCleanSummary(sum)
	return nil
}

func printCleanSummary(sum expiry.CleanSummary) {
	fmt.Println()
	if sum.Interrupted {
		fmt.Println(warnColor.Sprint("Cleanup interrupted, partial results:"))
	} else {
		fmt.Println("Cleanup complete:")
	}
	fmt.Printf("  Albums checked:  %d\n", sum.Checked)
	fmt.Printf("  Albums deleted:  %s\n", okColor.Sprintf("%d", sum.Deleted))
	if sum.Vetoed > 0 {
		fmt.Printf("  Vetoed by stars: %d\n", sum.Vetoed)
	}
	if sum.RetainedFiles > 0 {
		fmt.Printf("  Files retained:  %d\n", sum.RetainedFiles)
	}
	if sum.Failed > 0 {
		fmt.Printf("  Failed:          %s\n", failColor.Sprintf("%d", sum.Failed))
	}
}
