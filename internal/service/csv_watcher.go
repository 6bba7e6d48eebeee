package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"tablestore/internal/domain"
)

// DefaultWatchDebounce is how long a watched file must be quiet before it
// is imported.
const DefaultWatchDebounce = 500 * time.Millisecond

// ── CSV file watcher (fsnotify) ───────────────────────────

// CSVWatch binds a file on disk to a database. Every write to the file
// appends its rows again.
type CSVWatch struct {
	Path        string    `json:"path"`
	DatabaseID  string    `json:"databaseId"`
	UserID      string    `json:"userId"`
	SkipUnknown bool      `json:"skipUnknownColumns"`
	Since       time.Time `json:"since"`
}

// CSVWatcher re-imports CSV files when they change. Parent directories are
// watched rather than the files so editors that replace on save still
// trigger.
type CSVWatcher struct {
	imports  *ImportService
	log      *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	watches map[string]CSVWatch
	dirs    map[string]int
	timers  map[string]*time.Timer
	running runningJobsGuard
}

// NewCSVWatcher creates an idle watcher. The fsnotify watcher is started
// with the first Watch.
func NewCSVWatcher(imports *ImportService, logger *zap.Logger) *CSVWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVWatcher{
		imports:  imports,
		log:      logger.Named("csv-watch"),
		debounce: DefaultWatchDebounce,
		watches:  make(map[string]CSVWatch),
		dirs:     make(map[string]int),
		timers:   make(map[string]*time.Timer),
	}
}

// SetDebounce changes the quiet period. It only affects later events.
func (w *CSVWatcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounce = d
	w.mu.Unlock()
}

// Watch starts re-importing path into databaseID on change. Watching a path
// again replaces its binding.
func (w *CSVWatcher) Watch(ctx context.Context, userID, databaseID, path string, skipUnknown bool) (*CSVWatch, error) {
	if _, err := w.imports.gate.AuthorizeLive(ctx, userID, databaseID); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, domain.Validation("bad path %q: %v", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, domain.Validation("cannot watch %s: %v", abs, err)
	}
	if info.IsDir() {
		return nil, domain.Validation("%s is a directory", abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, domain.Backing("start file watcher", err)
		}
		loopCtx, cancel := context.WithCancel(context.Background())
		w.watcher, w.cancel = fw, cancel
		go w.loop(loopCtx, fw)
	}

	if _, exists := w.watches[abs]; !exists {
		dir := filepath.Dir(abs)
		if w.dirs[dir] == 0 {
			if err := w.watcher.Add(dir); err != nil {
				return nil, domain.Backing("watch directory", err)
			}
		}
		w.dirs[dir]++
	}
	entry := CSVWatch{
		Path:        abs,
		DatabaseID:  databaseID,
		UserID:      userID,
		SkipUnknown: skipUnknown,
		Since:       time.Now().UTC(),
	}
	w.watches[abs] = entry
	w.log.Info("watching csv file", zap.String("path", abs), zap.String("databaseId", databaseID))
	return &entry, nil
}

// Unwatch stops watching path. Only the user who set up the watch may
// remove it.
func (w *CSVWatcher) Unwatch(userID, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Validation("bad path %q: %v", path, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	entry, ok := w.watches[abs]
	if !ok {
		return domain.NotFound("no watch on %s", abs)
	}
	if entry.UserID != userID {
		return domain.AccessDenied("access denied to watch on %s", abs)
	}
	delete(w.watches, abs)
	if t, ok := w.timers[abs]; ok {
		t.Stop()
		delete(w.timers, abs)
	}
	dir := filepath.Dir(abs)
	if w.dirs[dir]--; w.dirs[dir] <= 0 {
		delete(w.dirs, dir)
		if w.watcher != nil {
			_ = w.watcher.Remove(dir)
		}
	}
	w.log.Info("stopped watching csv file", zap.String("path", abs))
	return nil
}

// Watches lists userID's active watches ordered by path.
func (w *CSVWatcher) Watches(userID string) []CSVWatch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]CSVWatch, 0, len(w.watches))
	for _, e := range w.watches {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Close stops the watcher and waits for in-flight imports or ctx.
func (w *CSVWatcher) Close(ctx context.Context) error {
	w.mu.Lock()
	fw, cancel := w.watcher, w.cancel
	w.watcher, w.cancel = nil, nil
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	w.watches = make(map[string]CSVWatch)
	w.dirs = make(map[string]int)
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if fw != nil {
		err = fw.Close()
	}
	w.running.WaitAll(ctx)
	return err
}

func (w *CSVWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, _ := filepath.Abs(event.Name)
			w.schedule(ctx, abs)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *CSVWatcher) schedule(ctx context.Context, abs string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.watches[abs]; !ok {
		return
	}
	if t, ok := w.timers[abs]; ok {
		t.Stop()
	}
	w.timers[abs] = time.AfterFunc(w.debounce, func() { w.reimport(ctx, abs) })
}

func (w *CSVWatcher) reimport(ctx context.Context, abs string) {
	w.mu.Lock()
	entry, ok := w.watches[abs]
	delete(w.timers, abs)
	w.mu.Unlock()
	if !ok {
		return
	}
	if !w.running.TryLock(abs) {
		w.log.Debug("import already running, skipping", zap.String("path", abs))
		return
	}
	defer w.running.Unlock(abs)

	res, err := w.imports.ImportFile(ctx, entry.UserID, entry.DatabaseID, abs, entry.SkipUnknown)
	if err != nil {
		w.log.Error("re-import failed", zap.String("path", abs), zap.Error(err))
		return
	}
	w.log.Info("re-imported csv file",
		zap.String("path", abs),
		zap.String("databaseId", entry.DatabaseID),
		zap.Int("rows", res.Imported))
}
