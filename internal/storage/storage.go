// Package storage persists collections, prompt configs and generation metrics.
package storage

import (
	"context"
	"time"

	"github.com/hyperjump/playground/internal/models"
)

// ConfigRepository stores saved prompt configurations.
type ConfigRepository interface {
	Save(ctx context.Context, cfg *models.PromptConfig) error
	Get(ctx context.Context, id string) (*models.PromptConfig, error)
	List(ctx context.Context) ([]*models.PromptConfig, error)
	Update(ctx context.Context, cfg *models.PromptConfig) error
	Delete(ctx context.Context, id string) error
	SearchByTag(ctx context.Context, tag string) ([]*models.PromptConfig, error)
}

// MetricsRepository stores one row per generation call.
type MetricsRepository interface {
	Record(ctx context.Context, m *models.GenerationMetric) error
	Since(ctx context.Context, t time.Time) ([]*models.GenerationMetric, error)
}
