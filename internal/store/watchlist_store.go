package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/billwatch/internal/model"
)

// WatchlistStore handles the bills each user follows
type WatchlistStore struct {
	db *sql.DB
}

// NewWatchlistStore creates a new WatchlistStore
func NewWatchlistStore(db *sql.DB) *WatchlistStore {
	return &WatchlistStore{db: db}
}

// Follow adds a bill to a user's watchlist. Following twice returns
// ErrAlreadyExists and an unknown bill ErrNotFound.
func (s *WatchlistStore) Follow(ctx context.Context, userID, billID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO followed_bills (user_id, bill_id) VALUES ($1, $2)`, userID, billID)
	if err != nil {
		return fmt.Errorf("failed to follow bill %d: %w", billID, translateError(err))
	}
	return nil
}

// Unfollow removes a bill from a user's watchlist
func (s *WatchlistStore) Unfollow(ctx context.Context, userID, billID int) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM followed_bills WHERE user_id = $1 AND bill_id = $2`, userID, billID)
	if err != nil {
		return fmt.Errorf("failed to unfollow bill %d: %w", billID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to unfollow bill %d: %w", billID, err)
	}
	if n == 0 {
		return fmt.Errorf("bill %d is not followed: %w", billID, ErrNotFound)
	}
	return nil
}

// List returns a user's followed bills, most recently followed first
func (s *WatchlistStore) List(ctx context.Context, userID int) ([]model.WatchlistEntry, error) {
	query := `
		SELECT f.user_id, f.bill_id, b.title, f.created_at
		FROM followed_bills f
		JOIN bills b ON b.id = f.bill_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(&e.UserID, &e.BillID, &e.Title, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
