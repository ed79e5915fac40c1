package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jjenkins/billwatch/internal/model"
)

// StateStore handles database operations for the state directory
type StateStore struct {
	db *sql.DB
}

// NewStateStore creates a new StateStore
func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

// ListWithCounts returns every state with its number of active bills
func (s *StateStore) ListWithCounts(ctx context.Context) ([]model.StateBillCount, error) {
	query := `
		SELECT s.code, s.name, COUNT(b.id) FILTER (WHERE b.status > 0) AS active_bills
		FROM states s
		LEFT JOIN bills b ON b.state = s.code
		GROUP BY s.code, s.name
		ORDER BY s.name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	var states []model.StateBillCount
	for rows.Next() {
		var st model.StateBillCount
		if err := rows.Scan(&st.Code, &st.Name, &st.ActiveBills); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		states = append(states, st)
	}

	return states, rows.Err()
}

// Exists reports whether code is a known state
func (s *StateStore) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM states WHERE code = $1)`,
		strings.ToUpper(code)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check state %s: %w", code, err)
	}
	return exists, nil
}

// Codes returns every state code
func (s *StateStore) Codes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code FROM states ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list state codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan state code: %w", err)
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
