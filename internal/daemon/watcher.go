package daemon

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/logfields"
)

var errWatcherClosed = ferrors.FileSystemError("file watcher closed unexpectedly").Build()

// Watcher reports changes below a directory tree, coalescing bursts of
// file system events into one notification.
type Watcher struct {
	root     string
	quiet    time.Duration
	maxDelay time.Duration
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
}

// NewWatcher watches root and every directory below it. A change is reported
// once no event arrived for quiet, and at the latest maxDelay after the first
// event of a burst.
func NewWatcher(root string, quiet time.Duration, logger *slog.Logger) (*Watcher, error) {
	if quiet <= 0 {
		return nil, ferrors.ValidationError("watch debounce must be > 0").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create file watcher").Build()
	}
	w := &Watcher{
		root:     root,
		quiet:    quiet,
		maxDelay: 10 * quiet,
		watcher:  fw,
		logger:   logger,
	}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "watch docs directory").
			WithContext("path", root).
			Build()
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

// ignored skips dot files and editor backups.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}

// Run calls onChange after each burst of changes until ctx is done. It closes
// the underlying watcher before returning. An error means watching stopped
// before ctx was done.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	defer func() { _ = w.watcher.Close() }()

	quiet := time.NewTimer(w.quiet)
	quiet.Stop()
	defer quiet.Stop()
	deadline := time.NewTimer(w.maxDelay)
	deadline.Stop()
	defer deadline.Stop()
	pending := false

	fire := func() {
		quiet.Stop()
		deadline.Stop()
		pending = false
		onChange()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return errWatcherClosed
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("Docs change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
			quiet.Reset(w.quiet)
			if !pending {
				pending = true
				deadline.Reset(w.maxDelay)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return errWatcherClosed
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; assume something changed.
				quiet.Reset(w.quiet)
				pending = true
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		case <-quiet.C:
			fire()
		case <-deadline.C:
			w.logger.Debug("Docs keep changing, rebuilding anyway", slog.Duration("max_delay", w.maxDelay))
			fire()
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod || ignored(filepath.Base(ev.Name)) {
		return false
	}
	if ev.Has(fsnotify.Create) {
		// New directories are watched too.
		if err := w.addTree(ev.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			w.logger.Warn("Failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
		}
	}
	return true
}
