package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MetricsService calculates and stores system-wide metrics
type MetricsService struct {
	db *sql.DB
}

// NewMetricsService creates a new MetricsService
func NewMetricsService(db *sql.DB) *MetricsService {
	return &MetricsService{db: db}
}

// SystemMetrics represents calculated system-wide metrics
type SystemMetrics struct {
	TotalBills         int
	SummarizedBills    int
	TotalSessions      int
	TotalSponsors      int
	TrackedStates      int
	MostActiveState    string
	MostActiveStateCnt int
}

// Coverage is the share of bills that carry an AI summary, in percent
func (m *SystemMetrics) Coverage() float64 {
	if m.TotalBills == 0 {
		return 0
	}
	return float64(m.SummarizedBills) / float64(m.TotalBills) * 100
}

// CalculateAndStore calculates system metrics and stores them
func (m *MetricsService) CalculateAndStore(ctx context.Context) (*SystemMetrics, error) {
	metrics := &SystemMetrics{}

	billQuery := `
		SELECT
			COUNT(*) AS total_bills,
			COUNT(*) FILTER (WHERE ai_summary <> '') AS summarized_bills,
			COUNT(DISTINCT state) AS tracked_states
		FROM bills
	`
	err := m.db.QueryRowContext(ctx, billQuery).Scan(
		&metrics.TotalBills,
		&metrics.SummarizedBills,
		&metrics.TrackedStates,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate bill metrics: %w", err)
	}

	err = m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&metrics.TotalSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	err = m.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT people_id) FROM sponsors`).Scan(&metrics.TotalSponsors)
	if err != nil {
		return nil, fmt.Errorf("failed to count sponsors: %w", err)
	}

	// Active means still moving through the legislature
	activeQuery := `
		SELECT state, COUNT(*) AS active
		FROM bills
		WHERE status > 0
		GROUP BY state
		ORDER BY active DESC, state
		LIMIT 1
	`
	err = m.db.QueryRowContext(ctx, activeQuery).Scan(
		&metrics.MostActiveState,
		&metrics.MostActiveStateCnt,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find most active state: %w", err)
	}

	values := []struct {
		name  string
		value string
	}{
		{"total_bills", strconv.Itoa(metrics.TotalBills)},
		{"summarized_bills", strconv.Itoa(metrics.SummarizedBills)},
		{"summary_coverage", fmt.Sprintf("%.2f", metrics.Coverage())},
		{"total_sessions", strconv.Itoa(metrics.TotalSessions)},
		{"total_sponsors", strconv.Itoa(metrics.TotalSponsors)},
		{"tracked_states", strconv.Itoa(metrics.TrackedStates)},
		{"most_active_state", metrics.MostActiveState},
	}

	now := time.Now()
	for _, v := range values {
		if err := m.storeMetric(ctx, v.name, v.value, now); err != nil {
			return nil, err
		}
	}

	return metrics, nil
}

// storeMetric stores a single metric value
func (m *MetricsService) storeMetric(ctx context.Context, name, value string, at time.Time) error {
	query := `
		INSERT INTO system_metrics (metric_name, metric_value, calculated_at)
		VALUES ($1, $2, $3)
	`

	_, err := m.db.ExecContext(ctx, query, name, value, at)
	if err != nil {
		return fmt.Errorf("failed to store metric %s: %w", name, err)
	}

	return nil
}

// GetLatestMetrics retrieves the most recent value of every metric
func (m *MetricsService) GetLatestMetrics(ctx context.Context) (map[string]string, error) {
	query := `
		SELECT DISTINCT ON (metric_name) metric_name, metric_value
		FROM system_metrics
		ORDER BY metric_name, calculated_at DESC
	`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	metrics := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		metrics[name] = value
	}

	return metrics, rows.Err()
}
