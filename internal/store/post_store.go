package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjenkins/billwatch/internal/model"
)

// PostStore handles community posts on bills
type PostStore struct {
	db *sql.DB
}

// NewPostStore creates a new PostStore
func NewPostStore(db *sql.DB) *PostStore {
	return &PostStore{db: db}
}

// Create inserts a post. An unknown bill returns ErrNotFound.
func (s *PostStore) Create(ctx context.Context, p *model.Post) error {
	query := `
		INSERT INTO posts (bill_id, user_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, upvotes, downvotes, created_at
	`

	err := s.db.QueryRowContext(ctx, query, p.BillID, p.UserID, p.Content).
		Scan(&p.ID, &p.Upvotes, &p.Downvotes, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post on bill %d: %w", p.BillID, translateError(err))
	}
	return nil
}

// ListByBill returns a bill's posts, newest first
func (s *PostStore) ListByBill(ctx context.Context, billID int) ([]model.Post, error) {
	query := `
		SELECT id, bill_id, user_id, content, upvotes, downvotes, created_at
		FROM posts
		WHERE bill_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, billID)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts of bill %d: %w", billID, err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.ID, &p.BillID, &p.UserID, &p.Content, &p.Upvotes, &p.Downvotes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}

	return posts, rows.Err()
}
