package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jjenkins/billwatch/internal/model"
)

func newTestSyncer(store *memStore, source *fakeSource) *Syncer {
	return NewSyncer(source, store, NewReconciler(store, NewKeyedMutex(), nil, nil), 4, nil)
}

func TestSyncStateUnchangedHashWritesNothing(t *testing.T) {
	store := newMemStore()
	store.bills[1001] = &model.Bill{ID: 1001, ChangeHash: "abc"}
	source := &fakeSource{
		bills: map[int]*model.BillRecord{1001: sampleRecord(1001, "abc")},
		list: &model.MasterList{State: "MN", Items: map[int]model.ListItem{
			1001: {BillID: 1001, Number: "HF1", ChangeHash: "abc"},
		}},
	}

	stats, err := newTestSyncer(store, source).SyncState(context.Background(), "MN")
	if err != nil {
		t.Fatalf("SyncState failed: %v", err)
	}
	if store.writes != 0 {
		t.Errorf("expected zero writes, got %d", store.writes)
	}
	if len(source.fetched) != 0 {
		t.Errorf("expected no bill fetches, got %v", source.fetched)
	}
	if stats.Total != 1 || stats.Unchanged != 1 || stats.Changed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSyncStateReconcilesOnlyChangedBills(t *testing.T) {
	store := newMemStore()
	store.bills[1] = &model.Bill{ID: 1, ChangeHash: "same"}
	store.bills[2] = &model.Bill{ID: 2, ChangeHash: "old"}

	source := &fakeSource{
		bills: map[int]*model.BillRecord{
			2: sampleRecord(2, "new"),
			3: sampleRecord(3, "first"),
		},
		list: &model.MasterList{State: "MN", Items: map[int]model.ListItem{
			1: {BillID: 1, ChangeHash: "same"},
			2: {BillID: 2, ChangeHash: "new"},
			3: {BillID: 3, ChangeHash: "first"},
			4: {BillID: 4, ChangeHash: "gone-upstream"},
		}},
	}

	stats, err := newTestSyncer(store, source).SyncState(context.Background(), "MN")
	if err != nil {
		t.Fatalf("SyncState failed: %v", err)
	}
	if stats.Total != 4 || stats.Changed != 2 || stats.Unchanged != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if store.writes != 2 {
		t.Errorf("expected 2 reconciliations, got %d", store.writes)
	}
	if store.bills[2].ChangeHash != "new" || store.bills[3] == nil {
		t.Error("changed bills were not reconciled")
	}
	for _, id := range source.fetched {
		if id == 1 {
			t.Error("unchanged bill should not be fetched")
		}
	}
}

func TestSyncStateMasterListFailure(t *testing.T) {
	source := &fakeSource{err: &UpstreamError{Op: "getMasterList", Target: "ZZ", Status: "ERROR"}}

	_, err := newTestSyncer(newMemStore(), source).SyncState(context.Background(), "ZZ")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestSyncBill(t *testing.T) {
	store := newMemStore()
	source := &fakeSource{bills: map[int]*model.BillRecord{1001: sampleRecord(1001, "abc")}}
	s := newTestSyncer(store, source)
	ctx := context.Background()

	res, err := s.SyncBill(ctx, 1001)
	if err != nil {
		t.Fatalf("SyncBill failed: %v", err)
	}
	if !res.Changed || res.Bill.ChangeHash != "abc" {
		t.Errorf("expected first sync to reconcile, got %+v", res)
	}

	res, err = s.SyncBill(ctx, 1001)
	if err != nil {
		t.Fatalf("second SyncBill failed: %v", err)
	}
	if res.Changed || store.writes != 1 {
		t.Errorf("expected second sync to be gated, changed=%v writes=%d", res.Changed, store.writes)
	}

	_, err = s.SyncBill(ctx, 404)
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Errorf("expected UpstreamError for unknown bill, got %v", err)
	}
}

func TestSyncStatsMerge(t *testing.T) {
	total := &SyncStats{Total: 2, Changed: 1, Unchanged: 1}
	total.Merge(&SyncStats{Total: 3, Changed: 2, Failed: 1})
	total.Merge(nil)
	if total.Total != 5 || total.Changed != 3 || total.Failed != 1 || total.Unchanged != 1 {
		t.Errorf("unexpected merge result %+v", total)
	}
}
