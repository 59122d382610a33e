package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Sumatoshi-tech/globalesm/pkg/jsparse"
)

// DefaultDebounce is how long a path must stay quiet before it is rebuilt.
const DefaultDebounce = 100 * time.Millisecond

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Root   string
	OutDir string
	Prefix string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	Logger   *slog.Logger
	// OnResult, if set, observes every rebuild and removal. Removals carry a
	// Result with nil Output and nil Err.
	OnResult func(Result)
}

// Watcher rebuilds modules under a root directory as they change, mirroring
// them into an output directory.
type Watcher struct {
	builder *Builder
	cfg     WatchConfig
	pending map[string]pendingBuild
	ready   chan readyEvent
	// done is closed when Run returns; timers fired afterwards give up.
	done chan struct{}
	gen  uint64
}

// pendingBuild is the armed debounce timer of one path. Only the fire
// carrying the current gen triggers a rebuild.
type pendingBuild struct {
	timer *time.Timer
	gen   uint64
}

type readyEvent struct {
	path string
	gen  uint64
}

// NewWatcher creates a Watcher that compiles through builder.
func NewWatcher(builder *Builder, cfg WatchConfig) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		builder: builder,
		cfg:     cfg,
		pending: make(map[string]pendingBuild),
		ready:   make(chan readyEvent, 64),
	}
}

// Run builds everything once, then rebuilds on change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	w.done = make(chan struct{})
	defer close(w.done)

	err = w.addTree(fsw, w.cfg.Root)
	if err != nil {
		return err
	}

	w.initialBuild(ctx)

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()

			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}

			w.handle(fsw, event)
		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}

			w.cfg.Logger.WarnContext(ctx, "watch error", "error", watchErr)
		case ev := <-w.ready:
			if w.fired(ev) {
				w.rebuild(ctx, ev.path)
			}
		}
	}
}

func (w *Watcher) initialBuild(ctx context.Context) {
	sources, err := Discover([]string{w.cfg.Root})
	if err != nil {
		w.cfg.Logger.ErrorContext(ctx, "initial scan failed", "error", err)

		return
	}

	summary, err := w.builder.Run(ctx, Plan(sources, w.cfg.OutDir, w.cfg.Prefix))
	if err != nil {
		w.cfg.Logger.WarnContext(ctx, "initial build incomplete", "failed", summary.Failed, "error", err)
	}

	if w.cfg.OnResult != nil {
		for _, res := range summary.Results {
			w.cfg.OnResult(res)
		}
	}

	w.cfg.Logger.InfoContext(ctx, "initial build done", "modules", summary.Compiled, "duration", summary.Duration)
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create) && isDir(path):
		if skipDir(filepath.Base(path)) {
			return
		}

		err := w.addTree(fsw, path)
		if err != nil {
			w.cfg.Logger.Warn("watch directory failed", "path", path, "error", err)
		}

		sources, err := Discover([]string{path})
		if err != nil {
			return
		}

		for _, src := range sources {
			w.schedule(src.Path)
		}
	case !jsparse.IsModuleFile(path):
		return
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		if pending, ok := w.pending[path]; ok {
			pending.timer.Stop()
			delete(w.pending, path)
		}

		w.remove(path)
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		w.schedule(path)
	}
}

// schedule (re)arms the debounce timer of path. A timer that already fired
// but whose event is still queued goes stale and is dropped by fired.
func (w *Watcher) schedule(path string) {
	if pending, ok := w.pending[path]; ok {
		pending.timer.Stop()
	}

	w.gen++
	ev := readyEvent{path: path, gen: w.gen}
	done := w.done

	w.pending[path] = pendingBuild{
		gen:   ev.gen,
		timer: time.AfterFunc(w.cfg.Debounce, func() { w.notify(ev, done) }),
	}
}

func (w *Watcher) notify(ev readyEvent, done <-chan struct{}) {
	select {
	case w.ready <- ev:
	case <-done:
	}
}

// fired reports whether ev is the current fire of its path and, if so,
// disarms the path.
func (w *Watcher) fired(ev readyEvent) bool {
	pending, ok := w.pending[ev.path]
	if !ok || pending.gen != ev.gen {
		return false
	}

	delete(w.pending, ev.path)

	return true
}

func (w *Watcher) stopTimers() {
	for path, pending := range w.pending {
		pending.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) rebuild(ctx context.Context, path string) {
	if !isRegular(path) {
		return
	}

	job := Job{Path: path, ModuleName: ModuleName(w.cfg.Root, path, w.cfg.Prefix)}
	if w.cfg.OutDir != "" {
		job.OutPath = OutputPath(w.cfg.Root, path, w.cfg.OutDir)
	}

	res := w.builder.RunOne(ctx, job)
	if res.Err != nil {
		w.cfg.Logger.ErrorContext(ctx, "rebuild failed", "file", path, "error", res.Err)
	} else {
		w.cfg.Logger.InfoContext(ctx, "rebuilt", "file", path, "module", job.ModuleName)
	}

	if w.cfg.OnResult != nil {
		w.cfg.OnResult(res)
	}
}

func (w *Watcher) remove(path string) {
	job := Job{Path: path, ModuleName: ModuleName(w.cfg.Root, path, w.cfg.Prefix)}

	if w.cfg.OutDir != "" {
		job.OutPath = OutputPath(w.cfg.Root, path, w.cfg.OutDir)

		err := os.Remove(job.OutPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.cfg.Logger.Warn("remove output failed", "path", job.OutPath, "error", err)
		}
	}

	w.cfg.Logger.Info("removed", "file", path, "module", job.ModuleName)

	if w.cfg.OnResult != nil {
		w.cfg.OnResult(Result{Job: job})
	}
}

// addTree watches root and every directory below it that discovery would
// search.
func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if path != root && skipDir(entry.Name()) {
			return filepath.SkipDir
		}

		return fsw.Add(path)
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", root, err)
	}

	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.IsDir()
}

func isRegular(path string) bool {
	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}
