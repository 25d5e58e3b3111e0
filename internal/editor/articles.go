package editor

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/inkpad/internal/model"
)

// tagFilter parses the optional ?tag=N query parameter. A missing or
// malformed value means no filter.
func tagFilter(r *http.Request) *int {
	raw := r.URL.Query().Get("tag")
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil
	}
	return &id
}

func articleID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

type feedPage struct {
	basePage
	Articles  []model.Article
	Tags      []model.Tag
	ActiveTag int
}

// Feed shows every published article, optionally filtered by tag. It
// is the landing page and needs no session.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	filter := tagFilter(r)

	articles, err := h.backend.ListPublicArticles(r.Context(), filter)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	tags, err := h.backend.ListTags(r.Context())
	if err != nil {
		h.pageError(w, r, err)
		return
	}

	page := feedPage{basePage: h.page("Articles"), Articles: articles, Tags: tags}
	if filter != nil {
		page.ActiveTag = *filter
	}
	h.renderPage(w, "feed.html", page)
}

type articlePage struct {
	basePage
	Article model.Article
	Body    template.HTML
}

// Article renders one article's markdown body to sanitized HTML with
// compiled diagrams.
func (h *Handler) Article(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	article, err := h.backend.GetArticle(r.Context(), id)
	if err != nil {
		h.pageError(w, r, err)
		return
	}

	h.renderPage(w, "article.html", articlePage{
		basePage: h.page(article.Title),
		Article:  article,
		Body:     h.renderBody(r.Context(), article.Content),
	})
}

type dashboardPage struct {
	basePage
	Articles []model.Article
}

// Dashboard lists the user's own articles, drafts included.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	articles, err := h.backend.ListArticles(r.Context(), tagFilter(r))
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.renderPage(w, "dashboard.html", dashboardPage{basePage: h.page("Dashboard"), Articles: articles})
}

type editorPage struct {
	basePage
	IsNew    bool
	Article  model.Article
	Tags     []model.Tag
	Selected map[int]bool
	Error    string
}

func (h *Handler) editorData(r *http.Request, article model.Article, isNew bool) (editorPage, error) {
	tags, err := h.backend.ListTags(r.Context())
	if err != nil {
		return editorPage{}, err
	}
	selected := make(map[int]bool, len(article.Tags))
	for _, t := range article.Tags {
		selected[t.ID] = true
	}
	title := "Edit article"
	if isNew {
		title = "New article"
	}
	return editorPage{
		basePage: h.page(title),
		IsNew:    isNew,
		Article:  article,
		Tags:     tags,
		Selected: selected,
	}, nil
}

func (h *Handler) NewArticleForm(w http.ResponseWriter, r *http.Request) {
	page, err := h.editorData(r, model.Article{}, true)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.renderPage(w, "editor.html", page)
}

func (h *Handler) EditArticleForm(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	article, err := h.backend.GetArticle(r.Context(), id)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	page, err := h.editorData(r, article, false)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	h.renderPage(w, "editor.html", page)
}

// articleForm pulls the editor form fields. Tag checkboxes post one
// tag_ids value per checked box.
func articleForm(r *http.Request) (title, content string, tagIDs []int) {
	title = strings.TrimSpace(r.FormValue("title"))
	content = r.FormValue("content")
	for _, raw := range r.Form["tag_ids"] {
		if id, err := strconv.Atoi(raw); err == nil {
			tagIDs = append(tagIDs, id)
		}
	}
	return title, content, tagIDs
}

// rerenderEditor shows the form again with the user's input intact and
// a message explaining what went wrong.
func (h *Handler) rerenderEditor(w http.ResponseWriter, r *http.Request, article model.Article, isNew bool, status int, message string) {
	page, err := h.editorData(r, article, isNew)
	if err != nil {
		h.pageError(w, r, err)
		return
	}
	page.Error = message
	w.WriteHeader(status)
	h.renderPage(w, "editor.html", page)
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	title, content, tagIDs := articleForm(r)
	draft := model.Article{Title: title, Content: content}

	// Validate locally before any network traffic.
	if title == "" || strings.TrimSpace(content) == "" {
		h.rerenderEditor(w, r, draft, true, http.StatusBadRequest, "title and content are required")
		return
	}

	article, err := h.backend.CreateArticle(r.Context(), model.ArticleCreate{
		Title: title, Content: content, TagIDs: tagIDs,
	})
	if err != nil {
		h.rerenderEditor(w, r, draft, true, statusOf(err), messageOf(err))
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/articles/%d", article.ID), http.StatusSeeOther)
}

func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	title, content, tagIDs := articleForm(r)
	draft := model.Article{ID: id, Title: title, Content: content}

	if title == "" || strings.TrimSpace(content) == "" {
		h.rerenderEditor(w, r, draft, false, http.StatusBadRequest, "title and content are required")
		return
	}

	_, err = h.backend.UpdateArticle(r.Context(), id, model.ArticleUpdate{
		Title: &title, Content: &content, TagIDs: &tagIDs,
	})
	if err != nil {
		h.rerenderEditor(w, r, draft, false, statusOf(err), messageOf(err))
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/articles/%d", id), http.StatusSeeOther)
}

func (h *Handler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := articleID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.backend.DeleteArticle(r.Context(), id); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (h *Handler) PublishArticle(w http.ResponseWriter, r *http.Request) {
	h.togglePublish(w, r, h.backend.PublishArticle)
}

func (h *Handler) UnpublishArticle(w http.ResponseWriter, r *http.Request) {
	h.togglePublish(w, r, h.backend.UnpublishArticle)
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int) (model.Article, error)) {
	id, err := articleID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if _, err := op(r.Context(), id); err != nil {
		h.pageError(w, r, err)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
