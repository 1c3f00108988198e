// Package watcher ingests files dropped into inbox directories.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/playground/internal/config"
	"github.com/hyperjump/playground/internal/extract"
	"github.com/hyperjump/playground/internal/fileid"
	"github.com/hyperjump/playground/internal/indexer"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/pkg/utils"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// Ingester is the upload ingestion path.
type Ingester interface {
	IngestFile(ctx context.Context, path string, opts models.UploadOptions) (*models.UploadResult, error)
}

// Stats counts inbox activity since Start.
type Stats struct {
	Directories []string `json:"directories"`
	Collection  string   `json:"collection"`
	Ingested    int      `json:"ingested"`
	Skipped     int      `json:"skipped"`
	Failed      int      `json:"failed"`
	LastError   string   `json:"last_error,omitempty"`
}

// Inbox watches directories and ingests new or changed files into one
// collection. Writes to the same path are coalesced for the debounce window.
type Inbox struct {
	ingester   Ingester
	collection string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	fsw       *fsnotify.Watcher
	roots     []string
	rootPaths map[string][]string
	pending   map[string]*time.Timer
	versions  map[string]string
	stats     Stats
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	inflight  sync.WaitGroup
}

// Option configures an Inbox.
type Option func(*Inbox)

// WithLogger sets the inbox logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Inbox) { w.logger = l }
}

// WithDebounce overrides the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) Option {
	return func(w *Inbox) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewInbox returns an inbox over cfg.Directories. Files land in
// cfg.Collection, or the default collection when unset.
func NewInbox(ingester Ingester, cfg config.WatchConfig, opts ...Option) *Inbox {
	name := cfg.Collection
	if name == "" {
		name = models.DefaultCollection
	}
	w := &Inbox{
		ingester:   ingester,
		collection: name,
		extensions: cfg.Extensions,
		recursive:  cfg.RecursiveOrDefault(),
		debounce:   defaultDebounce,
		roots:      append([]string(nil), cfg.Directories...),
		rootPaths:  make(map[string][]string),
		pending:    make(map[string]*time.Timer),
		versions:   make(map[string]string),
		done:       make(chan struct{}),
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Inbox) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	for _, root := range w.roots {
		if err := w.watchRootLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			return err
		}
	}
	w.ctx = ctx
	w.started = true
	w.logger.Info("inbox watching",
		zap.Strings("directories", w.roots),
		zap.String("collection", w.collection),
		zap.Bool("recursive", w.recursive))
	go w.run(ctx, fsw)
	return nil
}

func (w *Inbox) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Debug("inbox watch error", zap.Error(err))
		}
	}
}

func (w *Inbox) handle(ev fsnotify.Event) {
	if !w.underRoot(ev.Name) {
		return
	}
	w.logger.Debug("inbox event", zap.String("op", ev.Op.String()), zap.String("path", ev.Name))
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			w.handleNewDirectory(ev.Name)
			return
		}
		if w.accepts(ev.Name) {
			w.schedule(ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// Chunks already ingested stay in the collection.
		w.cancel(ev.Name)
	}
}

func (w *Inbox) handleNewDirectory(dir string) {
	w.mu.Lock()
	fsw := w.fsw
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fsw.Add(path); err != nil {
			w.logger.Debug("inbox failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	w.syncDirectory(dir)
}

// accepts applies the upload filters: a supported format whose extension is
// in the configured list.
func (w *Inbox) accepts(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return extract.Supported(path) && indexer.ExtensionAllowed(filepath.Ext(path), w.extensions)
}

func (w *Inbox) underRoot(path string) bool {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Inbox) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if !w.started {
			w.mu.Unlock()
			return
		}
		w.inflight.Add(1)
		ctx := w.ctx
		w.mu.Unlock()
		defer w.inflight.Done()
		w.ingest(ctx, path)
	})
}

func (w *Inbox) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// ingest hands path to the ingester unless its content matches what was
// last ingested from the same path.
func (w *Inbox) ingest(ctx context.Context, path string) {
	key := fileid.Key(path)
	version, verr := fileid.ContentVersion(path)
	if verr == nil {
		w.mu.Lock()
		same := w.versions[key] == version
		if same {
			w.stats.Skipped++
		}
		w.mu.Unlock()
		if same {
			w.logger.Debug("inbox file unchanged", zap.String("path", path))
			return
		}
	}

	opts := models.NewUploadOptions()
	opts.CollectionName = w.collection
	opts.Description = "inbox: " + filepath.Dir(path)

	res, err := w.ingester.IngestFile(ctx, path, opts)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.stats.Failed++
		w.stats.LastError = err.Error()
		w.logger.Warn("inbox ingestion failed", zap.String("path", path), zap.Error(err))
		return
	}
	w.stats.Ingested++
	if verr == nil {
		w.versions[key] = version
	}
	w.logger.Info("inbox file ingested",
		zap.String("path", path),
		zap.String("collection", res.CollectionName),
		zap.Int("chunks", res.ChunksProcessed))
}

// AddDirectory starts watching root, creating it if needed. With
// syncExisting, files already in root are ingested in the background.
func (w *Inbox) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			return nil
		}
	}
	if w.fsw != nil {
		if err := w.watchRootLocked(abs); err != nil {
			return err
		}
	}
	w.roots = append(w.roots, abs)
	w.logger.Debug("inbox directory added", zap.String("path", abs))
	if syncExisting && w.fsw != nil {
		go w.syncDirectory(abs)
	}
	return nil
}

func (w *Inbox) watchRootLocked(root string) error {
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0755); err != nil {
		return err
	}
	var paths []string
	if !w.recursive {
		if err := w.fsw.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	} else {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := w.fsw.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Inbox) syncDirectory(root string) {
	w.mu.Lock()
	ctx := w.ctx
	recursive := w.recursive
	w.mu.Unlock()
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if w.accepts(path) {
			w.ingest(ctx, path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Ingested chunks are kept.
func (w *Inbox) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, r := range w.roots {
		if filepath.Clean(r) != abs {
			continue
		}
		if w.fsw != nil {
			for _, p := range w.rootPaths[abs] {
				_ = w.fsw.Remove(p)
			}
		}
		delete(w.rootPaths, abs)
		w.roots = append(w.roots[:i], w.roots[i+1:]...)
		w.logger.Debug("inbox directory removed", zap.String("path", abs))
		return nil
	}
	return nil
}

// Directories returns the watched roots.
func (w *Inbox) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// SyncExisting ingests files already present in every root. Call it after
// Start to pick up files dropped while the process was down.
func (w *Inbox) SyncExisting() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stats returns a snapshot of inbox activity.
func (w *Inbox) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.stats
	s.Directories = append([]string{}, w.roots...)
	s.Collection = w.collection
	return s
}

// Stop stops watching, drops pending ingestions and waits for running ones.
func (w *Inbox) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
	w.inflight.Wait()
}
