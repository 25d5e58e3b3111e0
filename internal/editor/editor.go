// Package editor is the browser-facing layer: it serves the authoring
// UI, talks to the publishing backend through the gateway client, and
// turns article markdown into sanitized HTML with compiled diagrams.
//
// LAYERING:
// The editor never talks HTTP to the backend directly — it goes through
// the gateway client, which owns bearer auth and error mapping. The
// editor's own concerns are form handling, local validation (reject
// empty fields BEFORE spending a network round trip), template
// rendering, and the session notices shown when a login expires.
package editor

import (
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/sakif/inkpad/internal/diagram"
	"github.com/sakif/inkpad/internal/model"
	"github.com/sakif/inkpad/internal/render"
	"github.com/sakif/inkpad/internal/session"
)

//go:embed templates
var templatesFS embed.FS

// Backend is the slice of the gateway client the editor consumes.
// Declaring the interface here (at the point of use, Go style) lets
// handler tests substitute a fake without spinning up an HTTP backend.
type Backend interface {
	Login(ctx context.Context, creds model.Credentials) (model.TokenResponse, model.User, error)
	Register(ctx context.Context, reg model.Registration) (model.User, error)

	ListArticles(ctx context.Context, tagID *int) ([]model.Article, error)
	ListPublicArticles(ctx context.Context, tagID *int) ([]model.Article, error)
	GetArticle(ctx context.Context, id int) (model.Article, error)
	CreateArticle(ctx context.Context, in model.ArticleCreate) (model.Article, error)
	UpdateArticle(ctx context.Context, id int, in model.ArticleUpdate) (model.Article, error)
	DeleteArticle(ctx context.Context, id int) error
	PublishArticle(ctx context.Context, id int) (model.Article, error)
	UnpublishArticle(ctx context.Context, id int) (model.Article, error)

	ListTags(ctx context.Context) ([]model.Tag, error)
	CreateTag(ctx context.Context, in model.TagCreate) (model.Tag, error)
	DeleteTag(ctx context.Context, id int) error
}

// Handler carries the dependencies shared by every page handler.
type Handler struct {
	backend   Backend
	session   *session.Store
	pipeline  *render.Pipeline
	html      *render.HTMLRenderer
	diagrams  *diagram.Renderer
	templates *template.Template
	logger    *slog.Logger

	// Mounts belonging to the latest preview, reclaimed when the next
	// preview supersedes them. The preview pane compiles asynchronously,
	// so its mounts outlive the request that created them.
	previewMu     sync.Mutex
	previewMounts []string
}

func NewHandler(backend Backend, sess *session.Store, diagrams *diagram.Renderer, logger *slog.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	h := &Handler{
		backend:   backend,
		session:   sess,
		pipeline:  render.New(),
		html:      render.NewHTMLRenderer(""),
		diagrams:  diagrams,
		templates: tmpl,
		logger:    logger,
	}

	// Invalidation can fire from any in-flight request; the redirect to
	// the login page happens on the next page load, which sees the
	// empty session. Here we only record that it happened.
	sess.OnInvalidate(func(reason string) {
		logger.Warn("session invalidated", slog.String("reason", reason))
	})

	// Preview compiles resolve after their request has returned; the
	// browser polls /diagrams/{id} for the result, this just traces it.
	diagrams.OnUpdate(func(id string) {
		logger.Debug("diagram mount resolved", slog.String("mount_id", id))
	})
	return h, nil
}

// basePage carries the fields every template needs: who is logged in,
// the one-shot session notice, and the UI language.
type basePage struct {
	Title    string
	Username string
	LoggedIn bool
	Notice   string
	Language string
}

// page builds the base fields and consumes the pending notice, so a
// notice set by an invalidation is shown exactly once.
func (h *Handler) page(title string) basePage {
	p := basePage{Title: title, Language: h.session.Language()}
	if u, ok := h.session.User(); ok {
		p.Username = u.Username
		p.LoggedIn = true
	}
	if n := h.session.Notice(); n != "" {
		p.Notice = n
		h.session.ClearNotice()
	}
	return p
}

func (h *Handler) renderPage(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		// Headers are already sent; all we can do is log.
		h.logger.Error("rendering template", slog.String("template", name), slog.String("error", err.Error()))
	}
}

// renderBody runs the markdown pipeline, sanitizes the result, and
// splices each compiled diagram into its placeholder. Mounts are
// one-shot here: every render mints fresh diagram ids, so the mounts
// are released once their SVG is spliced — without that, a long-running
// server would accumulate one mount per diagram per page view forever.
//
// ORDERING MATTERS:
// Sanitization runs over the markdown-derived HTML first. The SVG is
// injected AFTER because it is produced by our own compiler from
// escaped labels — running bluemonday over it would strip the svg
// elements it does not know about.
func (h *Handler) renderBody(ctx context.Context, source string) template.HTML {
	doc := h.pipeline.Render(source)
	out := h.html.Render(doc)

	mounts := doc.Diagrams()
	ids := make([]string, 0, len(mounts))
	for _, d := range mounts {
		ids = append(ids, d.DiagramID)
		snap := h.diagrams.RenderWait(ctx, d.DiagramID, d.Code)
		var inner string
		switch snap.Status {
		case diagram.StatusReady:
			inner = snap.SVG
		case diagram.StatusFailed:
			inner = `<pre class="diagram-error">` + html.EscapeString(snap.Err) + `</pre>`
		}
		marker := fmt.Sprintf(`data-diagram-id="%s"></div>`, d.DiagramID)
		out = strings.Replace(out, marker,
			fmt.Sprintf(`data-diagram-id="%s">%s</div>`, d.DiagramID, inner), 1)
	}
	h.diagrams.Forget(ids...)
	return template.HTML(out)
}

// RequireAuth gates a route on a live session. A request arriving after
// an invalidation (or before any login) bounces to the login page,
// where the pending notice explains why.
func (h *Handler) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.session.Token() == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}
