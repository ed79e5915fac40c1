package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jjenkins/billwatch/internal/logger"
	"github.com/jjenkins/billwatch/internal/model"
)

// BillSource is the upstream provider
type BillSource interface {
	FetchBill(ctx context.Context, billID int) (*model.BillRecord, error)
	FetchMasterList(ctx context.Context, state string) (*model.MasterList, error)
}

// SyncStats tracks sync statistics
type SyncStats struct {
	Total     int
	Changed   int
	Unchanged int
	Enriched  int
	Failed    int
	Duration  time.Duration
}

// BillSyncResult is the outcome of syncing one bill
type BillSyncResult struct {
	Bill      *model.Bill
	Changed   bool
	Enriched  bool
	EnrichErr error
}

// Syncer orchestrates fetching, change detection and reconciliation
type Syncer struct {
	source      BillSource
	bills       BillRepository
	reconciler  *Reconciler
	concurrency int
	logger      *logger.Logger
}

// NewSyncer creates a new Syncer. concurrency bounds parallel reconciliations
// of different bills during a state sync.
func NewSyncer(source BillSource, bills BillRepository, reconciler *Reconciler, concurrency int, log *logger.Logger) *Syncer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{
		source:      source,
		bills:       bills,
		reconciler:  reconciler,
		concurrency: concurrency,
		logger:      log,
	}
}

// SyncBill fetches one bill and reconciles it when its change hash moved.
// Upstream failures are returned as *UpstreamError.
func (s *Syncer) SyncBill(ctx context.Context, billID int) (*BillSyncResult, error) {
	record, err := s.source.FetchBill(ctx, billID)
	if err != nil {
		return nil, err
	}

	local, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill %d: %w", billID, err)
	}

	if !NeedsSync(local, record.ChangeHash) {
		s.logger.Debug("bill unchanged", "bill_id", billID, "change_hash", record.ChangeHash)
		return &BillSyncResult{Bill: local}, nil
	}

	res, err := s.reconciler.Reconcile(ctx, record)
	if err != nil {
		return nil, err
	}

	return &BillSyncResult{
		Bill:      res.Bill,
		Changed:   true,
		Enriched:  res.Enriched,
		EnrichErr: res.EnrichErr,
	}, nil
}

// SyncState reconciles every bill of a state's master list whose change hash
// differs from the stored one. Unchanged bills are neither fetched nor written.
// A failing bill is counted and logged without stopping the others.
func (s *Syncer) SyncState(ctx context.Context, state string) (*SyncStats, error) {
	start := time.Now()
	log := s.logger.With("run_id", uuid.NewString(), "state", state)
	stats := &SyncStats{}

	log.Info("Fetching master list from LegiScan...")
	list, err := s.source.FetchMasterList(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch master list: %w", err)
	}

	ids := make([]int, 0, len(list.Items))
	for id := range list.Items {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	hashes, err := s.bills.GetChangeHashes(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load change hashes: %w", err)
	}

	var changed []int
	for _, id := range ids {
		var local *model.Bill
		if h, ok := hashes[id]; ok {
			local = &model.Bill{ID: id, ChangeHash: h}
		}
		if NeedsSync(local, list.Items[id].ChangeHash) {
			changed = append(changed, id)
		}
	}

	stats.Total = len(ids)
	stats.Unchanged = len(ids) - len(changed)
	log.Info("Found bills to process", "total", stats.Total, "changed", len(changed), "unchanged", stats.Unchanged)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for idx, id := range changed {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			progress := fmt.Sprintf("[%d/%d]", idx+1, len(changed))
			item := list.Items[id]

			res, err := s.SyncBill(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Error(progress+" Failed to sync bill", "bill_id", id, "number", item.Number, "error", err)
				stats.Failed++
				return nil
			}
			if res.Changed {
				stats.Changed++
			} else {
				stats.Unchanged++
			}
			if res.Enriched {
				stats.Enriched++
			}
			log.Info(progress+" Synced bill", "bill_id", id, "number", item.Number, "changed", res.Changed, "enriched", res.Enriched)
			return nil
		})
	}

	g.Wait()
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// PrintSummary logs the sync statistics
func (s *Syncer) PrintSummary(stats *SyncStats) {
	s.logger.Info("=== Sync Summary ===")
	s.logger.Info(fmt.Sprintf("Total bills:     %d", stats.Total))
	s.logger.Info(fmt.Sprintf("Changed:         %d", stats.Changed))
	s.logger.Info(fmt.Sprintf("Unchanged:       %d", stats.Unchanged))
	s.logger.Info(fmt.Sprintf("Enriched:        %d", stats.Enriched))
	s.logger.Info(fmt.Sprintf("Failed:          %d", stats.Failed))

	attempted := stats.Total - stats.Unchanged
	if attempted > 0 {
		successRate := float64(stats.Changed) / float64(attempted) * 100
		s.logger.Info(fmt.Sprintf("Success rate:    %.1f%%", successRate))
	}
	s.logger.Info(fmt.Sprintf("Duration:        %s", stats.Duration.Round(time.Millisecond)))
}

// Merge adds other's counters to s
func (s *SyncStats) Merge(other *SyncStats) {
	if other == nil {
		return
	}
	s.Total += other.Total
	s.Changed += other.Changed
	s.Unchanged += other.Unchanged
	s.Enriched += other.Enriched
	s.Failed += other.Failed
	s.Duration += other.Duration
}
