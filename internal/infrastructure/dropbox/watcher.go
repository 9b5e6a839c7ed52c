// Package dropbox imports consignment files written into a watched directory.
// Imported files move to processed/, files that can never import move to
// failed/ next to a .err note, and transient failures stay for the next scan.
package dropbox

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/messaging"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	DefaultSettle = 250 * time.Millisecond
)

type Handler interface {
	Handle(ctx context.Context, source string, body []byte) (messaging.Outcome, error)
}

type Watcher struct {
	dir     string
	handler Handler
	// Settle is how long a file must go without writes before it is read.
	Settle time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func NewWatcher(dir string, handler Handler) *Watcher {
	return &Watcher{
		dir:     dir,
		handler: handler,
		Settle:  DefaultSettle,
		pending: make(map[string]*time.Timer),
	}
}

// Scan imports every *.json file already in the directory in name order.
func (w *Watcher) Scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errs.Wrapf(err, "read drop directory %s", w.dir)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isPayloadFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(err, "scan drop directory")
		}
		w.process(ctx, filepath.Join(w.dir, name))
	}
	return nil
}

// Run scans once, then imports files as they appear until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if strings.TrimSpace(w.dir) == "" {
		return errors.New("dropbox.dir is required")
	}
	if w.handler == nil {
		return errors.New("dropbox handler is required")
	}
	ctx = logging.WithAttrs(ctx, slog.String("component", "dropbox.watcher"), slog.String("dir", w.dir))

	for _, sub := range []string{w.dir, filepath.Join(w.dir, ProcessedDir), filepath.Join(w.dir, FailedDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return errs.Wrapf(err, "create %s", sub)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fsnotify watcher")
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return errs.Wrapf(err, "watch %s", w.dir)
	}

	if err := w.Scan(ctx); err != nil {
		return err
	}
	logging.Info(ctx, "watching for consignment files")

	ready := make(chan string, 16)
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !isPayloadFile(event.Name) {
				continue
			}
			logging.Debug(ctx, "consignment file changed", slog.String("file", filepath.Base(event.Name)))
			w.schedule(ctx, event.Name, ready)
		case path := <-ready:
			w.process(ctx, path)
		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed")
			}
			logging.Warn(ctx, "fsnotify error", slog.String("err", err.Error()))
		}
	}
}

// schedule restarts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string, ready chan<- string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.Settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		select {
		case ready <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	ctx = logging.WithAttrs(ctx, slog.String("file", filepath.Base(path)))

	body, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logging.Warn(ctx, "read consignment file", slog.String("err", err.Error()))
		}
		return
	}

	outcome, importErr := w.handler.Handle(ctx, "dropbox", body)
	switch outcome {
	case messaging.OutcomeAck:
		if err := moveInto(path, filepath.Join(w.dir, ProcessedDir)); err != nil {
			logging.Error(ctx, "move processed file", slog.Any("err", errs.Loggable(err)))
		}
	case messaging.OutcomeReject:
		target := filepath.Join(w.dir, FailedDir)
		if err := moveInto(path, target); err != nil {
			logging.Error(ctx, "move failed file", slog.Any("err", errs.Loggable(err)))
			return
		}
		reason := "rejected"
		if importErr != nil {
			reason = importErr.Error()
		}
		note := filepath.Join(target, filepath.Base(path)+".err")
		if err := os.WriteFile(note, []byte(reason+"\n"), 0o644); err != nil {
			logging.Warn(ctx, "write failure note", slog.String("err", err.Error()))
		}
	default:
		// Left in place for the next scan.
	}
}

func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(err, "create %s", dir)
	}
	if err := os.Rename(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		return errs.Wrapf(err, "move %s", filepath.Base(path))
	}
	return nil
}

func isPayloadFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}
