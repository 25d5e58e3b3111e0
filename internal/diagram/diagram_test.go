package diagram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------------------------------------------------------------------
// Flowchart compiler
// ---------------------------------------------------------------------

func TestCompileBasicFlowchart(t *testing.T) {
	src := `graph TD
A[Start] --> B{Decision}
B -->|yes| C(Done)
B -->|no| A`

	svg, err := NewFlowchartCompiler().Compile(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Contains(t, svg, ">Start</text>")
	assert.Contains(t, svg, ">Decision</text>")
	assert.Contains(t, svg, ">Done</text>")
	assert.Contains(t, svg, ">yes</text>")
	assert.Contains(t, svg, `marker-end="url(#arrow)"`)
	assert.Contains(t, svg, "<polygon", "diamond shape for braces")
	assert.Contains(t, svg, `rx="18"`, "rounded shape for parens")
}

func TestCompileEdgeChain(t *testing.T) {
	svg, err := NewFlowchartCompiler().Compile(context.Background(), "graph LR\nA --> B --> C")
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(svg, "<line"))
	assert.Equal(t, 3, strings.Count(svg, "<rect"))
}

func TestCompileEscapesLabels(t *testing.T) {
	svg, err := NewFlowchartCompiler().Compile(context.Background(), "graph TD\nA[<script>] --> B")
	require.NoError(t, err)

	assert.NotContains(t, svg, "<script>")
	assert.Contains(t, svg, "&lt;script&gt;")
}

func TestCompileRejectsGarbage(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"missing header", "A --> B"},
		{"empty source", "   \n  "},
		{"header only", "graph TD"},
		{"unparseable node", "graph TD\nA --> @@@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFlowchartCompiler().Compile(context.Background(), tt.source)
			assert.Error(t, err)
		})
	}
}

func TestCompileIgnoresComments(t *testing.T) {
	src := "graph TD\n%% this is a comment\nA --> B"
	svg, err := NewFlowchartCompiler().Compile(context.Background(), src)
	require.NoError(t, err)
	assert.NotContains(t, svg, "comment")
}

// ---------------------------------------------------------------------
// Renderer lifecycle
// ---------------------------------------------------------------------

// fakeCompiler hands back canned results and can hold a compile open
// until the test releases it, to exercise in-flight supersession.
type fakeCompiler struct {
	mu      sync.Mutex
	results map[string]string // source -> svg
	errs    map[string]error
	gates   map[string]chan struct{} // source -> release signal
	calls   int
}

func newFakeCompiler() *fakeCompiler {
	return &fakeCompiler{
		results: make(map[string]string),
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
	}
}

func (f *fakeCompiler) Compile(ctx context.Context, source string) (string, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[source]
	svg, err := f.results[source], f.errs[source]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return svg, err
}

func (f *fakeCompiler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, ch <-chan string, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case id := <-ch:
			if id == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for update of mount %q", want)
		}
	}
}

func TestSubmitCompilesAsynchronously(t *testing.T) {
	fake := newFakeCompiler()
	fake.results["graph TD\nA"] = "<svg>one</svg>"

	r := NewRenderer(fake, discardLogger())
	updates := make(chan string, 8)
	r.OnUpdate(func(id string) { updates <- id })

	r.Submit(context.Background(), "m1", "graph TD\nA")
	waitFor(t, updates, "m1")

	snap, ok := r.Snapshot("m1")
	require.True(t, ok)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "<svg>one</svg>", snap.SVG)
}

func TestSubmitFailureIsCarriedOnTheMount(t *testing.T) {
	fake := newFakeCompiler()
	fake.errs["bad"] = fmt.Errorf("line 1: expected a graph or flowchart header, got \"bad\"")

	r := NewRenderer(fake, discardLogger())
	updates := make(chan string, 8)
	r.OnUpdate(func(id string) { updates <- id })

	r.Submit(context.Background(), "m1", "bad")
	waitFor(t, updates, "m1")

	snap, ok := r.Snapshot("m1")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Err, "flowchart header")
}

func TestSlowCompileCannotOverwriteNewerResult(t *testing.T) {
	fake := newFakeCompiler()
	gate := make(chan struct{})
	fake.gates["old"] = gate
	fake.results["old"] = "<svg>old</svg>"
	fake.results["new"] = "<svg>new</svg>"

	r := NewRenderer(fake, discardLogger())
	updates := make(chan string, 8)
	r.OnUpdate(func(id string) { updates <- id })

	// First submit parks inside the compiler; the second supersedes it.
	r.Submit(context.Background(), "m1", "old")
	r.Submit(context.Background(), "m1", "new")
	waitFor(t, updates, "m1")

	snap, _ := r.Snapshot("m1")
	require.Equal(t, "<svg>new</svg>", snap.SVG)

	// Release the stale compile and give it a moment to (not) land.
	close(gate)
	time.Sleep(50 * time.Millisecond)

	snap, _ = r.Snapshot("m1")
	assert.Equal(t, "<svg>new</svg>", snap.SVG, "stale result must be discarded")
	assert.Equal(t, StatusReady, snap.Status)
}

func TestResubmittingIdenticalSourceIsANoOp(t *testing.T) {
	fake := newFakeCompiler()
	fake.results["src"] = "<svg/>"

	r := NewRenderer(fake, discardLogger())
	updates := make(chan string, 8)
	r.OnUpdate(func(id string) { updates <- id })

	r.Submit(context.Background(), "m1", "src")
	waitFor(t, updates, "m1")
	r.Submit(context.Background(), "m1", "src")
	r.Submit(context.Background(), "m1", "src")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, fake.callCount())
}

func TestRenderWaitReturnsSynchronously(t *testing.T) {
	fake := newFakeCompiler()
	fake.results["src"] = "<svg>sync</svg>"

	r := NewRenderer(fake, discardLogger())
	snap := r.RenderWait(context.Background(), "m1", "src")

	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, "<svg>sync</svg>", snap.SVG)

	// Cached: a second call for the same source skips the compiler.
	r.RenderWait(context.Background(), "m1", "src")
	assert.Equal(t, 1, fake.callCount())
}

func TestForgetDropsMountState(t *testing.T) {
	fake := newFakeCompiler()
	fake.results["src"] = "<svg/>"

	r := NewRenderer(fake, discardLogger())
	r.RenderWait(context.Background(), "m1", "src")
	r.Forget("m1")

	_, ok := r.Snapshot("m1")
	assert.False(t, ok)
}

func TestRendererWithRealCompiler(t *testing.T) {
	r := NewRenderer(NewFlowchartCompiler(), discardLogger())

	snap := r.RenderWait(context.Background(), "m1", "graph TD\nA[Start] --> B[End]")
	require.Equal(t, StatusReady, snap.Status)
	assert.Contains(t, snap.SVG, ">Start</text>")
}
