package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/pipeline"
	"github.com/vmunix/crate/internal/reconciler"
	"github.com/vmunix/crate/pkg/match"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Search and queue wanted albums",
	Long: `Fetch the wanted list from Lidarr, search slskd for each album,
and queue the best candidate for download. Albums without an acceptable
album-level candidate fall back to per-track searches.

Tracks already present in the Owned tier or already reserved in the
ledger are skipped.`,
	RunE: runSyncCmd,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSyncCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := reconciler.New(a.cfg.Library, a.lidarr, a.starredSource(), a.expiry, a.bus, a.actions,
		a.logger.With("component", "reconciler"))
	owned, err := rec.OwnedIndex()
	if err != nil {
		return fmt.Errorf("scan owned tier: %w", err)
	}

	p := pipeline.New(a.lidarr, a.slskd, a.ledger, match.NewScorer(a.cfg.Scoring.Weights()),
		a.bus, a.actions, pipelineConfig(a), a.logger.With("component", "pipeline"))

	sum, err := p.Run(ctx, owned)
	if err != nil {
		return err
	}
	printSyncSummary(sum)
	return nil
}

func pipelineConfig(a *app) pipeline.Config {
	return pipeline.Config{
		Workers:          a.cfg.Pipeline.Workers,
		SearchTimeout:    time.Duration(a.cfg.Pipeline.SearchTimeoutSeconds) * time.Second,
		PollInterval:     time.Duration(a.cfg.Pipeline.PollIntervalSeconds) * time.Second,
		MinResults:       a.cfg.Pipeline.MinResults,
		TrackSearchLimit: a.cfg.Pipeline.TrackSearchLimit,
	}
}

func printSyncSummary(sum pipeline.Summary) {
	fmt.Println()
	if sum.Interrupted {
		fmt.Println(warnColor.Sprint("Sync interrupted, partial results:"))
	} else {
		fmt.Println("Sync complete:")
	}
	fmt.Printf("  Albums checked:  %d\n", sum.AlbumsChecked)
	fmt.Printf("  Albums queued:   %s\n", okColor.Sprintf("%d", sum.AlbumsQueued))
	if sum.AlbumsFailed > 0 {
		fmt.Printf("  Albums failed:   %s\n", failColor.Sprintf("%d", sum.AlbumsFailed))
	}
	fmt.Printf("  Tracks wanted:   %d\n", sum.TracksWanted)
	fmt.Printf("  Tracks queued:   %s\n", okColor.Sprintf("%d", sum.TracksQueued))
	fmt.Printf("  Tracks owned:    %d\n", sum.TracksOwned)
	fmt.Printf("  Already queued:  %d\n", sum.TracksAlreadyQueued)
	if sum.TracksSkipped > 0 {
		fmt.Printf("  Tracks skipped:  %d\n", sum.TracksSkipped)
	}
	if sum.TracksFailed > 0 {
		fmt.Printf("  Tracks failed:   %s\n", failColor.Sprintf("%d", sum.TracksFailed))
	}
}
