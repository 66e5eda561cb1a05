package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/watcher"
)

var watchInterval int

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow transfers and release finished reservations",
	Long: `Poll slskd for transfer state. Completed and permanently failed
transfers release their ledger reservation; failed tracks become
searchable again on the next sync. Reservations with no matching
transfer past the stale threshold are surfaced but never cleared.

Runs until interrupted.`,
	RunE: runWatchCmd,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntVar(&watchInterval, "interval", 15, "Poll interval in seconds")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := watcher.New(a.slskd, a.ledger, a.bus,
		time.Duration(watchInterval)*time.Second, a.staleAfter(),
		a.logger.With("component", "watcher"))

	fmt.Printf("Watching transfers every %ds, Ctrl-C to stop\n", watchInterval)
	return w.Run(ctx)
}
