package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jjenkins/billwatch/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := NewDB(dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func day(s string) sql.NullTime {
	t, _ := time.Parse("2006-01-02", s)
	return sql.NullTime{Time: t, Valid: true}
}

func testSnapshot(billID int, hash string, sponsors int) *model.BillSnapshot {
	snap := &model.BillSnapshot{
		Bill: model.Bill{
			ID:           billID,
			BillNumber:   "HF1",
			ChangeHash:   hash,
			Title:        "Education funding",
			Status:       1,
			StatusDate:   day("2024-01-01"),
			State:        "MN",
			SessionID:    sql.NullInt64{Int64: 2024, Valid: true},
			LastUpdated:  day("2024-02-01"),
			RawData:      []byte(`{"bill_id":1}`),
			LastSyncedAt: time.Now(),
		},
		Session: &model.Session{ID: 2024, StateID: 23, SessionName: "93rd Legislature"},
		History: []model.HistoryEntry{
			{Date: day("2024-02-01"), Action: "Second reading"},
			{Date: day("2023-12-01"), Action: "Introduced"},
		},
		Texts: []model.BillText{{DocID: 1, Date: day("2024-01-01"), TextHash: "t1"}},
	}
	for i := 0; i < sponsors; i++ {
		snap.Sponsors = append(snap.Sponsors, model.Sponsor{PeopleID: i + 1, Name: "Sponsor"})
	}
	return snap
}

func countRows(t *testing.T, db *sql.DB, table string, billID int) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM `+table+` WHERE bill_id = $1`, billID).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestBillStoreReconcile(t *testing.T) {
	db := openTestDB(t)
	bills := NewBillStore(db)
	ctx := context.Background()

	if _, err := bills.ReconcileBill(ctx, testSnapshot(1001, "abc", 3)); err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if err := bills.UpdateAnalysis(ctx, 1001, &model.Analysis{Summary: "kept"}, "t1"); err != nil {
		t.Fatalf("update analysis: %v", err)
	}

	second := testSnapshot(1001, "def", 1)
	second.Session.SessionName = "renamed"
	bill, err := bills.ReconcileBill(ctx, second)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}

	if bill.ChangeHash != "def" || bill.AISummary != "kept" || bill.AITextFingerprint != "t1" {
		t.Errorf("unexpected bill after reconcile: %+v", bill)
	}
	if n := countRows(t, db, "sponsors", 1001); n != 1 {
		t.Errorf("expected 1 sponsor, got %d", n)
	}
	if n := countRows(t, db, "bill_history", 1001); n != 2 {
		t.Errorf("expected 2 history rows, got %d", n)
	}

	detail, err := bills.GetBillDetail(ctx, 1001)
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail.Session == nil || detail.Session.SessionName != "93rd Legislature" {
		t.Errorf("expected session to be left unchanged, got %+v", detail.Session)
	}

	hashes, err := bills.GetChangeHashes(ctx, []int{1001, 9999})
	if err != nil {
		t.Fatalf("get change hashes: %v", err)
	}
	if len(hashes) != 1 || hashes[1001] != "def" {
		t.Errorf("unexpected hashes %v", hashes)
	}

	items, total, err := bills.ListByState(ctx, "MN", 10, 0)
	if err != nil {
		t.Fatalf("list by state: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].LastAction.String != "Second reading" {
		t.Errorf("unexpected listing %d %+v", total, items)
	}
}

func TestBillStoreCancelledReconcileRollsBack(t *testing.T) {
	db := openTestDB(t)
	bills := NewBillStore(db)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bills.ReconcileBill(ctx, testSnapshot(1001, "abc", 2)); err == nil {
		t.Fatal("expected cancelled reconcile to fail")
	}

	got, err := bills.GetBill(context.Background(), 1001)
	if err != nil || got != nil {
		t.Errorf("expected no bill after cancelled reconcile, got %+v %v", got, err)
	}
}

func TestWatchlistStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := NewBillStore(db).ReconcileBill(ctx, testSnapshot(1001, "abc", 0)); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	users := NewUserStore(db)
	u := &model.User{Email: "Voter@Example.com", HashedPassword: "x", IsActive: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := users.Create(ctx, &model.User{Email: "voter@example.com", HashedPassword: "y"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected duplicate email to fail, got %v", err)
	}

	watchlist := NewWatchlistStore(db)
	if err := watchlist.Follow(ctx, u.ID, 1001); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := watchlist.Follow(ctx, u.ID, 1001); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected duplicate follow to fail, got %v", err)
	}
	if err := watchlist.Follow(ctx, u.ID, 4242); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected unknown bill to fail, got %v", err)
	}

	entries, err := watchlist.List(ctx, u.ID)
	if err != nil || len(entries) != 1 || entries[0].Title != "Education funding" {
		t.Errorf("unexpected watchlist %+v %v", entries, err)
	}

	if err := watchlist.Unfollow(ctx, u.ID, 1001); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if err := watchlist.Unfollow(ctx, u.ID, 1001); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected second unfollow to report not found, got %v", err)
	}
}
