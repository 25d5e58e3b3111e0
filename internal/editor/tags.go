package editor

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkpad/internal/model"
)

type tagsPage struct {
	basePage
	Tags  []model.Tag
	Error string
}

func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.backend.ListTags(r.Context())
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.renderPage(w, "tags.html", tagsPage{basePage: h.page("Tags"), Tags: tags})
}

func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	color := strings.TrimSpace(r.FormValue("color"))

	rerender := func(status int, message string) {
		tags, err := h.backend.ListTags(r.Context())
		if err != nil {
			h.pageError(w, r, err)
			return
		}
		w.WriteHeader(status)
		h.renderPage(w, "tags.html", tagsPage{basePage: h.page("Tags"), Tags: tags, Error: message})
	}

	if name == "" {
		rerender(http.StatusBadRequest, "tag name is required")
		return
	}

	if _, err := h.backend.CreateTag(r.Context(), model.TagCreate{Name: name, Color: color}); err != nil {
		rerender(statusOf(err), messageOf(err))
		return
	}
	http.Redirect(w, r, "/tags", http.StatusSeeOther)
}

func (h *Handler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.backend.DeleteTag(r.Context(), id); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/tags", http.StatusSeeOther)
}
