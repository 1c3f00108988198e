// Package download tracks background model downloads and their on-disk
// completion markers.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

// MarkerFile is written into a model's directory once its download completes.
const MarkerFile = "download_complete.json"

const (
	sizeCalculating = "Calculating..."
	sizeUnknown     = "Unknown"
	sizeCached      = "Already cached"
)

// GatedModels require an accepted license and a Hugging Face token.
var GatedModels = []string{
	"meta-llama/Meta-Llama-3-8B-Instruct",
	"meta-llama/Meta-Llama-3-8B",
	"meta-llama/Meta-Llama-3-14B-Instruct",
	"meta-llama/Meta-Llama-3-14B",
	"TheBloke/Meta-Llama-3-8B-Instruct-GGUF",
	"TheBloke/Meta-Llama-3-10B-Instruct-GGUF",
	"TheBloke/Meta-Llama-3-14B-Instruct-GGUF",
}

type marker struct {
	ModelName    string    `json:"model_name"`
	Provider     string    `json:"provider"`
	DownloadedAt time.Time `json:"downloaded_at"`
	Status       string    `json:"status"`
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Tracker owns the download records and the background tasks. Records live
// in memory; completion survives restarts through marker files under dir.
type Tracker struct {
	dir     string
	fetcher Fetcher
	hfToken string
	gated   map[string]bool
	logger  *zap.Logger
	policy  retrypolicy.RetryPolicy[any]
	now     func() time.Time

	mu      sync.Mutex
	records map[string]*models.DownloadRecord
	active  map[string]*task
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithFetcher replaces the simulated fetcher.
func WithFetcher(f Fetcher) Option {
	return func(t *Tracker) { t.fetcher = f }
}

// WithHFToken sets the Hugging Face credential that unlocks gated models.
func WithHFToken(token string) Option {
	return func(t *Tracker) { t.hfToken = token }
}

// WithLogger sets the tracker logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates dir if needed and returns an idle tracker.
func NewTracker(dir string, opts ...Option) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create models directory: %w", err)
	}
	t := &Tracker{
		dir:     dir,
		fetcher: NewSimulatedFetcher(),
		gated:   make(map[string]bool, len(GatedModels)),
		now:     time.Now,
		records: make(map[string]*models.DownloadRecord),
		active:  make(map[string]*task),
		policy: retrypolicy.Builder[any]().
			WithMaxRetries(3).
			WithDelay(100 * time.Millisecond).
			Build(),
	}
	for _, m := range GatedModels {
		t.gated[m] = true
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = utils.OrNop(t.logger)
	return t, nil
}

// Request starts a download unless the model is already on disk (and force is
// false) or already downloading. Failures are reported in the response, never
// as errors.
func (t *Tracker) Request(req models.ModelDownloadRequest) models.ModelDownloadResponse {
	name := req.ModelName
	provider := req.Provider
	if provider == "" {
		provider = string(models.ProviderHuggingFace)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[name]; ok {
		return t.view(t.records[name])
	}
	if t.IsDownloaded(name) {
		if !req.ForceRedownload {
			return t.cachedView(name, provider)
		}
		if err := os.RemoveAll(t.modelDir(name)); err != nil {
			return t.failNow(name, provider, fmt.Sprintf("Download failed: %v", err))
		}
	}
	if t.gated[name] && t.hfToken == "" {
		t.logger.Warn("gated model requested without credential", zap.String("model", name))
		return t.failNow(name, provider, fmt.Sprintf(
			"Gated model access required. Visit https://huggingface.co/%s to request access.", url.PathEscape(name)))
	}

	rec := &models.DownloadRecord{
		ModelName:    name,
		Provider:     provider,
		Status:       models.DownloadDownloading,
		StartTime:    t.now(),
		Message:      "Starting download of " + name,
		DownloadSize: sizeCalculating,
	}
	t.records[name] = rec

	ctx, cancel := context.WithCancel(context.Background())
	tk := &task{cancel: cancel, done: make(chan struct{})}
	t.active[name] = tk
	go t.run(ctx, tk, name, provider)

	t.logger.Info("download started", zap.String("model", name), zap.String("provider", provider))
	return t.view(rec)
}

func (t *Tracker) failNow(name, provider, msg string) models.ModelDownloadResponse {
	rec := &models.DownloadRecord{
		ModelName:    name,
		Provider:     provider,
		Status:       models.DownloadFailed,
		StartTime:    t.now(),
		Message:      msg,
		DownloadSize: sizeUnknown,
	}
	t.records[name] = rec
	return t.view(rec)
}

func (t *Tracker) run(ctx context.Context, tk *task, name, provider string) {
	defer close(tk.done)

	err := t.fetcher.Fetch(ctx, name, func(p Progress) {
		t.update(tk, name, func(rec *models.DownloadRecord) {
			rec.Progress = p.Percent
			rec.BytesDownloaded = p.BytesDownloaded
			rec.TotalBytes = p.TotalBytes
			rec.Message = fmt.Sprintf("Downloading %s... %d%%", name, int(p.Percent))
			if p.TotalBytes > 0 {
				rec.DownloadSize = humanize.Bytes(uint64(p.TotalBytes))
			}
		})
	})
	if err == nil {
		err = failsafe.Run(func() error {
			return t.writeMarker(name, provider)
		}, t.policy)
	}

	if errors.Is(err, context.Canceled) {
		t.logger.Info("download canceled", zap.String("model", name))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[name] != tk {
		return
	}
	delete(t.active, name)
	rec := t.records[name]
	if err != nil {
		rec.Status = models.DownloadFailed
		rec.Message = fmt.Sprintf("Download failed: %v", err)
		t.logger.Error("download failed", zap.String("model", name), zap.Error(err))
		return
	}
	rec.Status = models.DownloadCompleted
	rec.Progress = 100
	rec.Message = fmt.Sprintf("Model %s downloaded successfully", name)
	if rec.TotalBytes > 0 {
		rec.BytesDownloaded = rec.TotalBytes
	}
	t.logger.Info("download completed", zap.String("model", name))
}

// update applies fn to the record if tk is still the model's active task.
func (t *Tracker) update(tk *task, name string, fn func(*models.DownloadRecord)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[name] != tk {
		return
	}
	fn(t.records[name])
}

func (t *Tracker) writeMarker(name, provider string) error {
	dir := t.modelDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(marker{
		ModelName:    name,
		Provider:     provider,
		DownloadedAt: t.now().UTC(),
		Status:       string(models.DownloadCompleted),
	}, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, MarkerFile+".tmp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, MarkerFile))
}

// Status returns the tracked record, or completed when a marker exists, or
// not_started.
func (t *Tracker) Status(name string) models.ModelDownloadResponse {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok {
		return t.view(rec)
	}
	if t.IsDownloaded(name) {
		return t.cachedView(name, string(models.ProviderHuggingFace))
	}
	return models.ModelDownloadResponse{
		ModelName:     name,
		Provider:      string(models.ProviderHuggingFace),
		Status:        models.DownloadNotStarted,
		Message:       "Download not started for " + name,
		DownloadSize:  sizeUnknown,
		EstimatedTime: sizeUnknown,
		Timestamp:     t.now().UTC(),
	}
}

// Gate returns an error when the model's last download failed.
func (t *Tracker) Gate(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[name]; ok && rec.Status == models.DownloadFailed {
		return fmt.Errorf("model %s is unavailable: %s", name, rec.Message)
	}
	return nil
}

// Cancel stops a pending download and forgets the model's in-memory state.
// It reports whether there was anything to forget.
func (t *Tracker) Cancel(name string) bool {
	t.mu.Lock()
	tk, running := t.active[name]
	_, tracked := t.records[name]
	delete(t.active, name)
	delete(t.records, name)
	t.mu.Unlock()

	if running {
		tk.cancel()
		<-tk.done
	}
	return running || tracked
}

// Delete cancels any pending download and removes the model from disk.
func (t *Tracker) Delete(name string) (bool, error) {
	found := t.Cancel(name)
	dir := t.modelDir(name)
	if _, err := os.Stat(dir); err == nil {
		found = true
	}
	if err := os.RemoveAll(dir); err != nil {
		return found, fmt.Errorf("remove model %s: %w", name, err)
	}
	return found, nil
}

// Wait blocks until the model's active download, if any, finishes.
func (t *Tracker) Wait(name string) {
	t.mu.Lock()
	tk, ok := t.active[name]
	t.mu.Unlock()
	if ok {
		<-tk.done
	}
}

// Close cancels every pending download.
func (t *Tracker) Close() {
	t.mu.Lock()
	tasks := make([]*task, 0, len(t.active))
	for name, tk := range t.active {
		tasks = append(tasks, tk)
		delete(t.active, name)
	}
	t.mu.Unlock()
	for _, tk := range tasks {
		tk.cancel()
		<-tk.done
	}
}

// IsDownloaded reports whether the model's completion marker exists.
func (t *Tracker) IsDownloaded(name string) bool {
	_, err := os.Stat(filepath.Join(t.modelDir(name), MarkerFile))
	return err == nil
}

// Downloaded returns the names of every model with a completion marker, sorted.
func (t *Tracker) Downloaded() []string {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		t.logger.Warn("failed to list models directory", zap.Error(err))
		return []string{}
	}
	out := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(t.dir, e.Name(), MarkerFile))
		if err != nil {
			continue
		}
		var m marker
		if err := json.Unmarshal(data, &m); err != nil || m.ModelName == "" {
			m.ModelName = strings.Replace(e.Name(), "_", "/", 1)
		}
		out = append(out, m.ModelName)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) modelDir(name string) string {
	return filepath.Join(t.dir, strings.ReplaceAll(name, "/", "_"))
}

func (t *Tracker) cachedView(name, provider string) models.ModelDownloadResponse {
	return models.ModelDownloadResponse{
		ModelName:     name,
		Provider:      provider,
		Status:        models.DownloadCompleted,
		Progress:      100,
		Message:       fmt.Sprintf("Model %s is already downloaded", name),
		DownloadSize:  sizeCached,
		EstimatedTime: "0s",
		Timestamp:     t.now().UTC(),
	}
}

func (t *Tracker) view(rec *models.DownloadRecord) models.ModelDownloadResponse {
	return models.ModelDownloadResponse{
		ModelName:     rec.ModelName,
		Provider:      rec.Provider,
		Status:        rec.Status,
		Progress:      rec.Progress,
		Message:       rec.Message,
		DownloadSize:  rec.DownloadSize,
		EstimatedTime: t.eta(rec),
		Timestamp:     t.now().UTC(),
	}
}

// eta estimates the remaining time from the average byte rate so far.
func (t *Tracker) eta(rec *models.DownloadRecord) string {
	if rec.Status == models.DownloadFailed {
		return sizeUnknown
	}
	if rec.BytesDownloaded <= 0 || rec.TotalBytes <= 0 {
		return sizeCalculating
	}
	elapsed := t.now().Sub(rec.StartTime).Seconds()
	if elapsed <= 0 {
		return sizeCalculating
	}
	rate := float64(rec.BytesDownloaded) / elapsed
	remaining := float64(rec.TotalBytes-rec.BytesDownloaded) / rate
	return FormatETA(remaining)
}

// FormatETA renders seconds as "Ns" under a minute, "Nm" under an hour,
// otherwise "Nh".
func FormatETA(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", int(seconds))
	case seconds < 3600:
		return fmt.Sprintf("%dm", int(seconds/60))
	default:
		return fmt.Sprintf("%dh", int(seconds/3600))
	}
}
