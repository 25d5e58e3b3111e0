package editor

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkpad/internal/diagram"
)

// Stylesheet serves the syntax-highlighting CSS for the class names the
// renderer emits. Linked from the page layout.
func (h *Handler) Stylesheet(w http.ResponseWriter, r *http.Request) {
	css, err := h.html.StyleSheet()
	if err != nil {
		http.Error(w, "stylesheet unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	io.WriteString(w, css)
}

// PREVIEW ENDPOINTS:
// The editor page posts the draft markdown here as the user types and
// swaps the returned HTML into the preview pane. Diagram blocks come
// back as empty placeholders: their compiles run asynchronously and the
// page polls /diagrams/{id} until each one resolves. The renderer's
// staleness guard makes overlapping previews safe — when a keystroke
// supersedes a slow compile, the slow result is discarded instead of
// flickering back in — and each preview reclaims the mounts of the one
// it replaces, so abandoned compiles do not pile up.

type previewRequest struct {
	Markdown string `json:"markdown"`
}

type previewResponse struct {
	HTML     string   `json:"html"`
	Diagrams []string `json:"diagrams"`
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "validation_error", Message: "request body must be JSON with a markdown field",
		})
		return
	}

	doc := h.pipeline.Render(req.Markdown)
	out := h.html.Render(doc)

	ids := make([]string, 0)
	// Compiles outlive this request; the poll endpoint delivers them.
	compileCtx := context.WithoutCancel(r.Context())
	for _, d := range doc.Diagrams() {
		ids = append(ids, d.DiagramID)
		h.diagrams.Submit(compileCtx, d.DiagramID, d.Code)
	}

	h.previewMu.Lock()
	h.diagrams.Forget(h.previewMounts...)
	h.previewMounts = ids
	h.previewMu.Unlock()

	h.writeJSON(w, http.StatusOK, previewResponse{HTML: out, Diagrams: ids})
}

type diagramResponse struct {
	Status string `json:"status"`
	SVG    string `json:"svg,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Diagram reports the state of one diagram mount, for pages that
// submitted a compile asynchronously and poll for the result.
func (h *Handler) Diagram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := h.diagrams.Snapshot(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "not_found", Message: "no diagram mounted with that identifier",
		})
		return
	}

	resp := diagramResponse{Status: snap.Status.String()}
	switch snap.Status {
	case diagram.StatusReady:
		resp.SVG = snap.SVG
	case diagram.StatusFailed:
		resp.Error = snap.Err
	}
	h.writeJSON(w, http.StatusOK, resp)
}
