package editor

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForBody(t *testing.T, w *Watcher, substr string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(string(w.Body()), substr) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("watcher body never contained %q; got %q", substr, w.Body())
}

func TestWatcherRerendersOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.md")
	require.NoError(t, os.WriteFile(path, []byte("# first"), 0644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	render := func(_ context.Context, source string) template.HTML {
		return template.HTML("<rendered>" + source + "</rendered>")
	}
	w := NewWatcher(path, render, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	// Initial render happens before the first save.
	waitForBody(t, w, "# first")

	require.NoError(t, os.WriteFile(path, []byte("# second"), 0644))
	waitForBody(t, w, "# second")

	// A rename-style save (write temp, rename over) is also picked up.
	tmp := filepath.Join(dir, "draft.md.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("# third"), 0644))
	require.NoError(t, os.Rename(tmp, path))
	waitForBody(t, w, "# third")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancellation")
	}
}

func TestWatcherKeepsLastGoodRenderWhenFileVanishes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "draft.md")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewWatcher(path, func(_ context.Context, s string) template.HTML {
		return template.HTML(s)
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	waitForBody(t, w, "content")

	require.NoError(t, os.Remove(path))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, template.HTML("content"), w.Body())
}
