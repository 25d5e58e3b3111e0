package diagram

import (
	"context"
	"log/slog"
	"sync"
)

// Status is the compile lifecycle of one diagram mount.
type Status int

const (
	StatusIdle Status = iota
	StatusCompiling
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusCompiling:
		return "compiling"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time copy of a mount's state, safe to use
// after the renderer has moved on.
type Snapshot struct {
	Status Status
	SVG    string
	Err    string
	Source string
}

// mountState tracks one diagram mount. version increments on every
// submit; a compile result is applied only when the version it was
// started under is still current, so a slow compile for old source can
// never overwrite the result of a newer one.
type mountState struct {
	version uint64
	status  Status
	svg     string
	err     string
	source  string
}

// Renderer compiles diagram sources off the request path and keeps the
// latest result per mount id. All methods are safe for concurrent use.
type Renderer struct {
	mu       sync.Mutex
	compiler Compiler
	logger   *slog.Logger
	states   map[string]*mountState
	onUpdate []func(id string)
}

func NewRenderer(compiler Compiler, logger *slog.Logger) *Renderer {
	return &Renderer{
		compiler: compiler,
		logger:   logger,
		states:   make(map[string]*mountState),
	}
}

// OnUpdate registers a callback fired whenever a mount reaches Ready or
// Failed. Callbacks run outside the renderer's lock and must not block.
func (r *Renderer) OnUpdate(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUpdate = append(r.onUpdate, fn)
}

// Submit starts an asynchronous compile for the mount. Resubmitting
// identical source that already compiled is a no-op; resubmitting new
// source supersedes any compile still in flight.
func (r *Renderer) Submit(ctx context.Context, id, source string) {
	r.mu.Lock()
	st, ok := r.states[id]
	if !ok {
		st = &mountState{}
		r.states[id] = st
	}
	if st.source == source && (st.status == StatusReady || st.status == StatusCompiling) {
		r.mu.Unlock()
		return
	}
	st.version++
	version := st.version
	st.status = StatusCompiling
	st.source = source
	st.svg = ""
	st.err = ""
	r.mu.Unlock()

	go r.compile(ctx, id, source, version)
}

// RenderWait compiles synchronously and returns the resulting snapshot.
// It participates in the same versioning as Submit, so a RenderWait
// result superseded by a later Submit is discarded from the store even
// though it is still returned to the caller.
func (r *Renderer) RenderWait(ctx context.Context, id, source string) Snapshot {
	r.mu.Lock()
	st, ok := r.states[id]
	if !ok {
		st = &mountState{}
		r.states[id] = st
	}
	if st.source == source && st.status == StatusReady {
		snap := snapshotOf(st)
		r.mu.Unlock()
		return snap
	}
	st.version++
	version := st.version
	st.status = StatusCompiling
	st.source = source
	r.mu.Unlock()

	svg, err := r.compiler.Compile(ctx, source)

	snap := Snapshot{Status: StatusReady, SVG: svg, Source: source}
	if err != nil {
		snap = Snapshot{Status: StatusFailed, Err: err.Error(), Source: source}
	}
	r.apply(id, version, snap)
	return snap
}

func (r *Renderer) compile(ctx context.Context, id, source string, version uint64) {
	svg, err := r.compiler.Compile(ctx, source)

	snap := Snapshot{Status: StatusReady, SVG: svg, Source: source}
	if err != nil {
		r.logger.Warn("diagram compile failed", "mount_id", id, "error", err)
		snap = Snapshot{Status: StatusFailed, Err: err.Error(), Source: source}
	}
	r.apply(id, version, snap)
}

// apply installs a compile result unless a newer submit superseded it.
func (r *Renderer) apply(id string, version uint64, snap Snapshot) {
	r.mu.Lock()
	st, ok := r.states[id]
	if !ok || st.version != version {
		r.mu.Unlock()
		r.logger.Debug("discarding stale diagram result", "mount_id", id, "version", version)
		return
	}
	st.status = snap.Status
	st.svg = snap.SVG
	st.err = snap.Err
	callbacks := make([]func(string), len(r.onUpdate))
	copy(callbacks, r.onUpdate)
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(id)
	}
}

// Snapshot returns the current state of a mount.
func (r *Renderer) Snapshot(id string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[id]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(st), true
}

// Mounts reports how many mounts the renderer is tracking. Renders mint
// a fresh id per diagram block, so callers must Forget mounts they are
// done with; this count is how tests and diagnostics verify they do.
func (r *Renderer) Mounts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

// Forget drops mounts that no longer appear in the rendered document.
// In-flight compiles for a forgotten mount are discarded on completion.
func (r *Renderer) Forget(ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.states, id)
	}
}

func snapshotOf(st *mountState) Snapshot {
	return Snapshot{Status: st.status, SVG: st.svg, Err: st.err, Source: st.source}
}
