// Package metrics aggregates recorded generations into the dashboard views.
package metrics

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/storage"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// DefaultRange applies when a request names no or an unknown range.
const DefaultRange = "24h"

var ranges = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParseRange maps a dashboard timeRange to its duration; unknown values use 24h.
func ParseRange(s string) time.Duration {
	if d, ok := ranges[s]; ok {
		return d
	}
	return ranges[DefaultRange]
}

// Summary is the body of GET /dashboard/metrics.
type Summary struct {
	TotalRequests           int      `json:"totalRequests"`
	AverageLatency          float64  `json:"averageLatency"`
	TotalTokens             int      `json:"totalTokens"`
	SuccessRate             float64  `json:"successRate"`
	ModelsUsed              []string `json:"modelsUsed"`
	PeakConcurrentRequests  int      `json:"peakConcurrentRequests"`
	AverageTokensPerRequest float64  `json:"averageTokensPerRequest"`
}

// ModelStats is one entry of GET /dashboard/models.
type ModelStats struct {
	ModelName               string    `json:"modelName"`
	Provider                string    `json:"provider"`
	TotalRequests           int       `json:"totalRequests"`
	AverageLatency          float64   `json:"averageLatency"`
	TotalTokens             int       `json:"totalTokens"`
	SuccessRate             float64   `json:"successRate"`
	LastUsed                time.Time `json:"lastUsed"`
	AverageTokensPerRequest float64   `json:"averageTokensPerRequest"`
}

// HourBucket counts requests in one histogram bucket.
type HourBucket struct {
	Hour     string `json:"hour"`
	Requests int    `json:"requests"`
}

// ModelTokens is the token total of one model.
type ModelTokens struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
}

// LatencyPoint is one recent request's latency.
type LatencyPoint struct {
	Timestamp string  `json:"timestamp"`
	Latency   float64 `json:"latency"`
}

// Analytics is the body of GET /dashboard/analytics.
type Analytics struct {
	RequestsByHour []HourBucket   `json:"requestsByHour"`
	TokensByModel  []ModelTokens  `json:"tokensByModel"`
	LatencyTrends  []LatencyPoint `json:"latencyTrends"`
}

// System is the body of GET /dashboard/system.
type System struct {
	Uptime         string `json:"uptime"`
	ActiveModels   int    `json:"activeModels"`
	TotalModels    int    `json:"totalModels"`
	DiskUsage      string `json:"diskUsage"`
	DiskUsageBytes int64  `json:"diskUsageBytes"`
	MemoryUsage    string `json:"memoryUsage"`
	Goroutines     int    `json:"goroutines"`
}

// ModelCounter reports how many models are downloaded and how many exist.
type ModelCounter func() (active, total int)

// Recorder stores generation metrics and computes the dashboard views.
type Recorder struct {
	repo      storage.MetricsRepository
	models    ModelCounter
	dataPaths []string
	started   time.Time
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithModelCounter sets the source of activeModels and totalModels.
func WithModelCounter(c ModelCounter) Option {
	return func(r *Recorder) { r.models = c }
}

// WithDataPaths sets the files and directories summed for disk usage.
func WithDataPaths(paths ...string) Option {
	return func(r *Recorder) { r.dataPaths = paths }
}

// WithLogger sets the recorder logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder returns a recorder over repo. Uptime counts from this call.
func NewRecorder(repo storage.MetricsRepository, opts ...Option) *Recorder {
	r := &Recorder{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.started = r.now()
	r.logger = utils.OrNop(r.logger)
	return r
}

// Record stores one metric.
func (r *Recorder) Record(ctx context.Context, m *models.GenerationMetric) error {
	return r.repo.Record(ctx, m)
}

func (r *Recorder) window(ctx context.Context, timeRange string) ([]*models.GenerationMetric, time.Time, time.Duration, error) {
	d := ParseRange(timeRange)
	start := r.now().Add(-d)
	ms, err := r.repo.Since(ctx, start)
	if err != nil {
		return nil, start, d, fmt.Errorf("load metrics: %w", err)
	}
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Timestamp.Before(ms[j].Timestamp) })
	return ms, start, d, nil
}

// Summary aggregates every generation in the range.
func (r *Recorder) Summary(ctx context.Context, timeRange string) (*Summary, error) {
	ms, _, _, err := r.window(ctx, timeRange)
	if err != nil {
		return nil, err
	}
	out := &Summary{SuccessRate: 100, ModelsUsed: []string{}}
	if len(ms) == 0 {
		return out, nil
	}

	var latency float64
	var successes int
	seen := make(map[string]bool)
	perMinute := make(map[int64]int)
	for _, m := range ms {
		out.TotalTokens += m.TokensUsed
		latency += m.LatencyMS
		if m.Success {
			successes++
		}
		if m.ModelName != "" && !seen[m.ModelName] {
			seen[m.ModelName] = true
			out.ModelsUsed = append(out.ModelsUsed, m.ModelName)
		}
		minute := m.Timestamp.Unix() / 60
		perMinute[minute]++
		if perMinute[minute] > out.PeakConcurrentRequests {
			out.PeakConcurrentRequests = perMinute[minute]
		}
	}
	n := float64(len(ms))
	out.TotalRequests = len(ms)
	out.AverageLatency = round(latency/n, 2)
	out.SuccessRate = round(float64(successes)/n*100, 1)
	out.AverageTokensPerRequest = round(float64(out.TotalTokens)/n, 1)
	sort.Strings(out.ModelsUsed)
	return out, nil
}

// ByModel groups the range by model and provider, busiest first.
func (r *Recorder) ByModel(ctx context.Context, timeRange string) ([]ModelStats, error) {
	ms, _, _, err := r.window(ctx, timeRange)
	if err != nil {
		return nil, err
	}

	type acc struct {
		stats     ModelStats
		latency   float64
		successes int
	}
	groups := make(map[string]*acc)
	var order []string
	for _, m := range ms {
		key := fmt.Sprintf("%s (%s)", m.ModelName, m.Provider)
		a, ok := groups[key]
		if !ok {
			a = &acc{stats: ModelStats{ModelName: m.ModelName, Provider: m.Provider}}
			groups[key] = a
			order = append(order, key)
		}
		a.stats.TotalRequests++
		a.stats.TotalTokens += m.TokensUsed
		a.latency += m.LatencyMS
		if m.Success {
			a.successes++
		}
		if m.Timestamp.After(a.stats.LastUsed) {
			a.stats.LastUsed = m.Timestamp
		}
	}

	out := make([]ModelStats, 0, len(order))
	for _, key := range order {
		a := groups[key]
		n := float64(a.stats.TotalRequests)
		a.stats.AverageLatency = round(a.latency/n, 2)
		a.stats.SuccessRate = round(float64(a.successes)/n*100, 1)
		a.stats.AverageTokensPerRequest = round(float64(a.stats.TotalTokens)/n, 1)
		out = append(out, a.stats)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRequests > out[j].TotalRequests })
	return out, nil
}

// Analytics returns a request histogram of at most 24 equal buckets over the
// range, token totals per model and the latencies of the last 10 requests.
func (r *Recorder) Analytics(ctx context.Context, timeRange string) (*Analytics, error) {
	ms, start, d, err := r.window(ctx, timeRange)
	if err != nil {
		return nil, err
	}

	buckets := int(d / time.Hour)
	if buckets > 24 {
		buckets = 24
	}
	width := d / time.Duration(buckets)
	out := &Analytics{
		RequestsByHour: make([]HourBucket, buckets),
		TokensByModel:  []ModelTokens{},
		LatencyTrends:  []LatencyPoint{},
	}
	for i := range out.RequestsByHour {
		out.RequestsByHour[i].Hour = start.Add(time.Duration(i) * width).Format("15:04")
	}

	tokens := make(map[string]int)
	for _, m := range ms {
		if i := int(m.Timestamp.Sub(start) / width); i >= 0 && i < buckets {
			out.RequestsByHour[i].Requests++
		}
		tokens[m.ModelName] += m.TokensUsed
	}
	for model, n := range tokens {
		out.TokensByModel = append(out.TokensByModel, ModelTokens{Model: model, Tokens: n})
	}
	sort.Slice(out.TokensByModel, func(i, j int) bool {
		a, b := out.TokensByModel[i], out.TokensByModel[j]
		if a.Tokens != b.Tokens {
			return a.Tokens > b.Tokens
		}
		return a.Model < b.Model
	})

	recent := ms
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, m := range recent {
		out.LatencyTrends = append(out.LatencyTrends, LatencyPoint{
			Timestamp: m.Timestamp.Format("15:04"),
			Latency:   m.LatencyMS,
		})
	}
	return out, nil
}

// System reports process uptime, model counts and resource usage.
func (r *Recorder) System() *System {
	out := &System{
		Uptime:     FormatUptime(r.now().Sub(r.started)),
		Goroutines: runtime.NumGoroutine(),
	}
	if r.models != nil {
		out.ActiveModels, out.TotalModels = r.models()
	}
	n, err := storage.DiskUsageBytes(r.dataPaths...)
	if err != nil {
		r.logger.Warn("failed to compute disk usage", zap.Error(err))
	}
	out.DiskUsageBytes = n
	out.DiskUsage = humanize.Bytes(uint64(n))

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	out.MemoryUsage = humanize.Bytes(mem.Alloc)
	return out
}

// FormatUptime renders d as "Nh Nm".
func FormatUptime(d time.Duration) string {
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
