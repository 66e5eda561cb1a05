package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/events"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connection and library overview",
	Long: `Probe the configured services, count ledger reservations and
expiring albums, and show recent actions.`,
	RunE: runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("crate status")
	fmt.Println()

	fmt.Println("Services:")
	printProbe("lidarr", a.cfg.Lidarr.URL, a.lidarr.Ping(ctx))
	_, slskdErr := a.slskd.Downloads(ctx)
	printProbe("slskd", a.cfg.Slskd.URL, slskdErr)
	if a.navidrome != nil {
		printProbe("navidrome", a.cfg.Navidrome.URL, a.navidrome.Login(ctx))
	} else {
		fmt.Printf("  %-10s %s\n", "navidrome", warnColor.Sprint("not configured (star protection off)"))
	}
	fmt.Println()

	fmt.Println("Library roots:")
	fmt.Printf("  owned       %s\n", a.cfg.Library.OwnedRoot)
	fmt.Printf("  not-owned   %s\n", a.cfg.Library.NotOwnedRoot)
	fmt.Printf("  incomplete  %s\n", a.cfg.Library.IncompleteRoot)
	fmt.Printf("  downloads   %s\n", a.cfg.Library.DownloadsRoot)
	fmt.Println()

	entries, err := a.ledger.List()
	if err != nil {
		return fmt.Errorf("list ledger: %w", err)
	}
	expired, err := a.expiry.Expired(a.retention())
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}
	fmt.Printf("Ledger reservations: %d\n", len(entries))
	fmt.Printf("Albums past retention: %d\n", len(expired))

	actions, err := a.actions.Since(time.Now().Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("recent actions: %w", err)
	}
	if len(actions) > 0 {
		fmt.Println()
		fmt.Println("Actions in the last 24h:")
		shown := actions
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, act := range shown {
			status := act.Status
			switch act.Status {
			case events.StatusDone:
				status = okColor.Sprint(act.Status)
			case events.StatusFailed:
				status = failColor.Sprint(act.Status)
			}
			fmt.Printf("  %-9s %-7s %s\n", act.Action, status, filepath.Base(act.Target))
		}
		if len(actions) > len(shown) {
			fmt.Printf("  ... and %d more\n", len(actions)-len(shown))
		}
	}
	return nil
}

func printProbe(name, url string, err error) {
	if err != nil {
		fmt.Printf("  %-10s %s  %s (%v)\n", name, failColor.Sprint("down"), url, err)
		return
	}
	fmt.Printf("  %-10s %s  %s\n", name, okColor.Sprint("ok"), url)
}
