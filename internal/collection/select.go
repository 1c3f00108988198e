package collection

import (
	"context"
	"fmt"

	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// BackendAuto probes every candidate in order.
const BackendAuto = "auto"

// Candidate is a backend that may be opened at startup.
type Candidate struct {
	Kind string
	Open func(ctx context.Context) (Store, error)
}

// Select opens candidates in order and returns the first one that opens and
// answers Ping. When backend is not "auto", only the candidate of that kind is
// tried. If none is healthy the error wraps models.ErrNoBackendAvailable.
func Select(ctx context.Context, backend string, candidates []Candidate, logger *zap.Logger) (Store, error) {
	logger = utils.OrNop(logger)
	if backend == "" {
		backend = BackendAuto
	}
	tried := 0
	for _, cand := range candidates {
		if backend != BackendAuto && backend != cand.Kind {
			continue
		}
		tried++
		store, err := cand.Open(ctx)
		if err != nil {
			logger.Warn("collection backend failed to open", zap.String("backend", cand.Kind), zap.Error(err))
			continue
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			logger.Warn("collection backend unhealthy", zap.String("backend", cand.Kind), zap.Error(err))
			continue
		}
		logger.Info("collection backend selected", zap.String("backend", store.Kind()))
		return store, nil
	}
	if tried == 0 {
		return nil, fmt.Errorf("unknown collection backend %q: %w", backend, models.ErrNoBackendAvailable)
	}
	return nil, models.ErrNoBackendAvailable
}
