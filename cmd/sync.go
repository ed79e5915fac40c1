package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jjenkins/billwatch/internal/config"
	"github.com/jjenkins/billwatch/internal/service"
	"github.com/jjenkins/billwatch/internal/store"
)

var syncStates []string
var syncBills []int
var syncEvery time.Duration

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync bills from the LegiScan API",
	Long: `Sync fetches bills from LegiScan and reconciles every bill whose change
hash differs from the stored copy. Changed bills with new text are summarized
when AI_API_KEY is set.

Examples:
  # Sync every bill of the current Minnesota session
  ./billwatch sync --state MN

  # Sync two states
  ./billwatch sync --state MN --state WI

  # Sync a single bill
  ./billwatch sync --bill 1748329

  # Sync every seeded state once an hour until interrupted
  ./billwatch sync --every 1h`,
	Run: func(cmd *cobra.Command, args []string) {
		if code := runSync(); code != 0 {
			os.Exit(code)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVarP(&syncStates, "state", "s", nil, "State code to sync (repeatable); defaults to every seeded state")
	syncCmd.Flags().IntSliceVarP(&syncBills, "bill", "b", nil, "LegiScan bill id to sync (repeatable)")
	syncCmd.Flags().DurationVar(&syncEvery, "every", 0, "Repeat the sync at this interval until interrupted")
}

// runSync returns the process exit code so deferred cleanup runs before exit
func runSync() int {
	cfg := config.Load()
	if cfg.LegiScanAPIKey == "" {
		exitf("LEGISCAN_API_KEY environment variable is required")
	}

	a, err := newApp(cfg)
	if err != nil {
		exitf("Failed to start: %v", err)
	}
	defer a.Close()

	ctx, cancel := signalContext(a.log)
	defer cancel()

	if err := store.ApplyMigrations(ctx, a.db); err != nil {
		a.log.Error("Failed to apply migrations", "error", err)
		return 1
	}

	states := make([]string, 0, len(syncStates))
	for _, s := range syncStates {
		states = append(states, strings.ToUpper(strings.TrimSpace(s)))
	}
	if len(states) == 0 && len(syncBills) == 0 {
		states, err = store.NewStateStore(a.db).Codes(ctx)
		if err != nil {
			a.log.Error("Failed to load states", "error", err)
			return 1
		}
	}

	metrics := service.NewMetricsService(a.db)

	for {
		stats := syncOnce(ctx, a, states, syncBills)
		a.syncer.PrintSummary(stats)

		if ctx.Err() != nil {
			a.log.Info("Sync cancelled")
			return 1
		}

		logMetrics(ctx, a, metrics)

		if syncEvery <= 0 {
			return syncExitCode(stats)
		}

		a.log.Info("Waiting for next sync", "every", syncEvery)
		select {
		case <-ctx.Done():
			a.log.Info("Sync stopped")
			return 0
		case <-time.After(syncEvery):
		}
	}
}

// syncOnce runs one pass over the requested bills and states. A failing
// state or bill is counted without stopping the rest.
func syncOnce(ctx context.Context, a *app, states []string, bills []int) *service.SyncStats {
	start := time.Now()
	total := &service.SyncStats{}

	for i, billID := range bills {
		if ctx.Err() != nil {
			break
		}
		total.Total++

		res, err := a.syncer.SyncBill(ctx, billID)
		if err != nil {
			total.Failed++
			a.log.Error(fmt.Sprintf("[%d/%d] Failed to sync bill", i+1, len(bills)), "bill_id", billID, "error", err)
			continue
		}

		switch {
		case !res.Changed:
			total.Unchanged++
			a.log.Info(fmt.Sprintf("[%d/%d] Bill unchanged", i+1, len(bills)), "bill_id", billID)
		default:
			total.Changed++
			if res.Enriched {
				total.Enriched++
			}
			a.log.Info(fmt.Sprintf("[%d/%d] Bill synced", i+1, len(bills)),
				"bill_id", billID, "change_hash", res.Bill.ChangeHash, "enriched", res.Enriched)
		}
	}

	for _, state := range states {
		if ctx.Err() != nil {
			break
		}

		stats, err := a.syncer.SyncState(ctx, state)
		if err != nil {
			var uerr *service.UpstreamError
			if errors.As(err, &uerr) {
				a.log.Error("Failed to fetch master list", "state", state, "error", err)
			} else {
				a.log.Error("State sync failed", "state", state, "error", err)
			}
			total.Failed++
			continue
		}
		total.Merge(stats)
	}

	total.Duration = time.Since(start)
	return total
}

// syncExitCode is 1 when any bill or state failed
func syncExitCode(stats *service.SyncStats) int {
	if stats.Failed > 0 {
		return 1
	}
	return 0
}

func logMetrics(ctx context.Context, a *app, metrics *service.MetricsService) {
	a.log.Info("Calculating system metrics...")
	m, err := metrics.CalculateAndStore(ctx)
	if err != nil {
		a.log.Warn("Failed to calculate metrics", "error", err)
		return
	}

	a.log.Info("=== System Metrics ===")
	a.log.Info(fmt.Sprintf("Total bills:       %d", m.TotalBills))
	a.log.Info(fmt.Sprintf("Summarized bills:  %d (%.1f%%)", m.SummarizedBills, m.Coverage()))
	a.log.Info(fmt.Sprintf("Total sessions:    %d", m.TotalSessions))
	a.log.Info(fmt.Sprintf("Total sponsors:    %d", m.TotalSponsors))
	a.log.Info(fmt.Sprintf("Tracked states:    %d", m.TrackedStates))
	if m.MostActiveState != "" {
		a.log.Info(fmt.Sprintf("Most active state: %s (%d bills)", m.MostActiveState, m.MostActiveStateCnt))
	}
}
