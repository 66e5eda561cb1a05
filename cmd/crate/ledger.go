package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/crate/internal/events"
	"github.com/vmunix/crate/internal/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and manage download reservations",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active reservations",
	RunE:  runLedgerListCmd,
}

var ledgerClearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Release a reservation by track key",
	Long: `Release a reservation so the track becomes searchable again on the
next sync. The key is the normalized "artist|title" form shown by
'crate ledger list'.`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerClearCmd,
}

var ledgerStaleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List reservations with no matching active transfer",
	RunE:  runLedgerStaleCmd,
}

var ledgerHistoryCmd = &cobra.Command{
	Use:   "history <key>",
	Short: "Show the recorded events for a track key",
	Long: `Replay the persisted event trail for one track: queued, skipped,
completed, failed, stale. Useful for answering "why was this never
downloaded" after the fact.`,
	Args: cobra.ExactArgs(1),
	RunE: runLedgerHistoryCmd,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerCmd.AddCommand(ledgerClearCmd)
	ledgerCmd.AddCommand(ledgerStaleCmd)
	ledgerCmd.AddCommand(ledgerHistoryCmd)
}

func runLedgerListCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.ledger.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No active reservations")
		return nil
	}
	printEntries(entries)
	return nil
}

func runLedgerClearCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	key := args[0]
	if err := a.ledger.Release(key); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return fmt.Errorf("no reservation for %q", key)
		}
		return err
	}
	fmt.Printf("Released %s\n", key)
	return nil
}

func runLedgerStaleCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Anything slskd still reports as in flight is not stale, however old.
	active := make(map[string]bool)
	transfers, err := a.slskd.Downloads(ctx)
	if err != nil {
		a.logger.Warn("slskd unreachable, treating all transfers as inactive", "error", err)
	}
	for _, t := range transfers {
		if t.Active() {
			active[t.Filename] = true
		}
	}

	entries, err := a.ledger.Stale(active, a.staleAfter())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No stale reservations")
		return nil
	}
	fmt.Println(warnColor.Sprintf("%d stale reservations (clear with 'crate ledger clear <key>'):", len(entries)))
	printEntries(entries)
	return nil
}

func runLedgerHistoryCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	key := args[0]
	raws, err := a.eventLog.ForEntity("track", key)
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		fmt.Printf("No events recorded for %q\n", key)
		return nil
	}

	registry := events.DefaultRegistry()
	for _, raw := range raws {
		e, err := registry.Unmarshal(raw)
		if err != nil {
			// Old rows may predate a vocabulary change; show them anyway.
			fmt.Printf("%s  %-24s\n", raw.OccurredAt.Local().Format("2006-01-02 15:04"), raw.EventType)
			continue
		}
		fmt.Printf("%s  %-24s %s\n",
			e.OccurredAt().Local().Format("2006-01-02 15:04"), e.EventType(), eventDetail(e))
	}
	return nil
}

func eventDetail(e events.Event) string {
	switch v := e.(type) {
	case *events.TrackQueued:
		return fmt.Sprintf("peer=%s score=%d %s", v.Peer, v.Score, v.Path)
	case *events.TrackSkipped:
		return v.Reason
	case *events.TransferCompleted:
		return fmt.Sprintf("peer=%s %s", v.Peer, v.Path)
	case *events.TransferFailed:
		return failColor.Sprintf("state=%s peer=%s", v.State, v.Peer)
	case *events.StaleReservation:
		return warnColor.Sprintf("reserved %d days, no matching transfer", v.AgeDays)
	case *events.DuplicateRemoved:
		return "removed " + filepath.Base(v.Removed)
	case *events.DeletionVetoed:
		return "starred " + v.Level
	default:
		return ""
	}
}

func printEntries(entries []*ledger.Entry) {
	fmt.Printf("%-40s %-20s %-8s %s\n", "KEY", "ARTIST", "SOURCE", "AGE")
	for _, e := range entries {
		age := time.Since(e.QueuedAt).Round(time.Minute)
		fmt.Printf("%-40s %-20s %-8s %s\n", e.Key, e.Artist, e.Source, age)
	}
}
