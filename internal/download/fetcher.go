package download

import (
	"context"
	"time"
)

// Progress is one report from a running fetch.
type Progress struct {
	Percent         float64
	BytesDownloaded int64
	TotalBytes      int64
}

// Fetcher retrieves a model's files, reporting progress as it goes. It must
// return ctx.Err() promptly when ctx is canceled.
type Fetcher interface {
	Fetch(ctx context.Context, model string, report func(Progress)) error
}

// SimulatedFetcher stands in for a Hub download: progress advances by Step
// percent every Interval, with BytesPerPercent bytes per percent.
type SimulatedFetcher struct {
	Interval        time.Duration
	Step            int
	BytesPerPercent int64
}

// NewSimulatedFetcher returns a fetcher that takes about ten seconds to
// "download" 2.5 GB.
func NewSimulatedFetcher() *SimulatedFetcher {
	return &SimulatedFetcher{
		Interval:        time.Second,
		Step:            10,
		BytesPerPercent: 25_000_000,
	}
}

func (f *SimulatedFetcher) Fetch(ctx context.Context, model string, report func(Progress)) error {
	step := f.Step
	if step <= 0 {
		step = 10
	}
	timer := time.NewTimer(f.Interval)
	defer timer.Stop()
	for p := 0; p <= 100; p += step {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		report(Progress{
			Percent:         float64(p),
			BytesDownloaded: int64(p) * f.BytesPerPercent,
			TotalBytes:      100 * f.BytesPerPercent,
		})
		timer.Reset(f.Interval)
	}
	return nil
}
