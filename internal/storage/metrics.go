package storage

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/hyperjump/playground/internal/models"
)

// SQLiteMetricsRepository implements MetricsRepository on the generation_metrics table.
type SQLiteMetricsRepository struct {
	db *sql.DB
}

// Record inserts one metric row.
func (r *SQLiteMetricsRepository) Record(ctx context.Context, m *models.GenerationMetric) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO generation_metrics (timestamp, model_name, provider, tokens_used, latency_ms, success)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.Timestamp.UTC(), m.ModelName, m.Provider, m.TokensUsed, m.LatencyMS, m.Success,
	)
	return err
}

// Since returns metrics recorded at or after t, oldest first.
func (r *SQLiteMetricsRepository) Since(ctx context.Context, t time.Time) ([]*models.GenerationMetric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT timestamp, model_name, provider, tokens_used, latency_ms, success
		 FROM generation_metrics WHERE timestamp >= ? ORDER BY timestamp, id`, t.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.GenerationMetric
	for rows.Next() {
		var m models.GenerationMetric
		if err := rows.Scan(&m.Timestamp, &m.ModelName, &m.Provider, &m.TokensUsed, &m.LatencyMS, &m.Success); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MemoryMetricsRepository keeps metrics in process memory.
type MemoryMetricsRepository struct {
	mu      sync.RWMutex
	metrics []*models.GenerationMetric
}

// NewMemoryMetricsRepository returns an empty repository.
func NewMemoryMetricsRepository() *MemoryMetricsRepository {
	return &MemoryMetricsRepository{}
}

func (r *MemoryMetricsRepository) Record(ctx context.Context, m *models.GenerationMetric) error {
	c := *m
	r.mu.Lock()
	r.metrics = append(r.metrics, &c)
	r.mu.Unlock()
	return nil
}

func (r *MemoryMetricsRepository) Since(ctx context.Context, t time.Time) ([]*models.GenerationMetric, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.GenerationMetric
	for _, m := range r.metrics {
		if !m.Timestamp.Before(t) {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}
