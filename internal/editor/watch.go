package editor

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-renders a markdown file on disk whenever it changes, for
// drafting in an external editor with a live browser preview.
//
// It watches the file's DIRECTORY rather than the file itself: most
// editors save by writing a temp file and renaming it over the
// original, which makes a watch on the file itself go stale after the
// first save.
type Watcher struct {
	path   string
	render func(ctx context.Context, source string) template.HTML
	logger *slog.Logger

	mu   sync.RWMutex
	body template.HTML
}

func NewWatcher(path string, render func(ctx context.Context, source string) template.HTML, logger *slog.Logger) *Watcher {
	return &Watcher{path: path, render: render, logger: logger}
}

// NewWatcher builds a watcher wired to this handler's render pipeline.
func (h *Handler) NewWatcher(path string) *Watcher {
	return NewWatcher(path, h.renderBody, h.logger)
}

// Run watches until the context is cancelled. It renders once up front
// so the preview has content before the first save.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.reload(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("preview source changed", slog.String("path", w.path), slog.String("op", event.Op.String()))
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// A rename-style save briefly removes the file; keep the last
		// good render until the new one lands.
		w.logger.Warn("reading preview source", slog.String("path", w.path), slog.String("error", err.Error()))
		return
	}
	body := w.render(ctx, string(data))

	w.mu.Lock()
	w.body = body
	w.mu.Unlock()
}

// Body returns the most recent render.
func (w *Watcher) Body() template.HTML {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.body
}

type livePage struct {
	basePage
	Path string
	Body template.HTML
}

// LivePreview serves the watched file's rendering. The page refreshes
// itself so saves show up without a manual reload.
func (h *Handler) LivePreview(watcher *Watcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.renderPage(w, "live.html", livePage{
			basePage: h.page("Live preview"),
			Path:     watcher.path,
			Body:     watcher.Body(),
		})
	}
}
