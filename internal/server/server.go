// Package server wires the UI server together: session store, gateway
// client, diagram renderer, editor handlers, routes, and graceful
// shutdown.
//
// COMPOSITION ROOT:
// All dependencies are assembled here in one place. Each layer receives
// only what it needs — the editor gets the gateway client behind an
// interface, the gateway gets the session store behind an interface,
// and nothing below this package touches HTTP listeners or signals.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/inkpad/internal/diagram"
	"github.com/sakif/inkpad/internal/editor"
	"github.com/sakif/inkpad/internal/gateway"
	"github.com/sakif/inkpad/internal/middleware"
	sqliteRepo "github.com/sakif/inkpad/internal/repository/sqlite"
	"github.com/sakif/inkpad/internal/session"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port        int
	BackendURL  string // base URL of the publishing backend API
	StatePath   string // SQLite file holding token, user and preferences
	PreviewFile string // optional markdown file served at /live
}

type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	session *session.Store
	watcher *editor.Watcher
}

// New assembles the full dependency chain:
//
//	sqlite.DB → session.Store → gateway.Client → editor.Handler
//
// The session store is shared between the gateway (which invalidates it
// on a 401) and the editor (which reads it on every page).
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state database: %w", err)
	}

	sess := session.NewStore(db, logger)

	// nil client: the gateway falls back to http.DefaultClient, which
	// enforces no timeout — backend calls run as long as the transport
	// allows.
	backend := gateway.New(cfg.BackendURL, nil, sess, logger)

	diagrams := diagram.NewRenderer(diagram.NewFlowchartCompiler(), logger)

	handler, err := editor.NewHandler(backend, sess, diagrams, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating editor handler: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		session: sess,
	}
	if cfg.PreviewFile != "" {
		s.watcher = handler.NewWatcher(cfg.PreviewFile)
	}

	s.setupRoutes(handler)
	return s, nil
}

func (s *Server) setupRoutes(h *editor.Handler) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/articles", http.StatusSeeOther)
	})

	// Public pages: the feed and single articles need no session.
	s.router.Get("/articles", h.Feed)
	s.router.Get("/articles/{id}", h.Article)

	s.router.Get("/login", h.LoginForm)
	s.router.Post("/login", h.Login)
	s.router.Get("/register", h.RegisterForm)
	s.router.Post("/register", h.Register)
	s.router.Post("/logout", h.Logout)
	s.router.Post("/language", h.SetLanguage)

	// Authoring pages bounce to /login without a live session.
	s.router.Get("/dashboard", h.RequireAuth(h.Dashboard))
	s.router.Get("/dashboard/new", h.RequireAuth(h.NewArticleForm))
	s.router.Post("/dashboard/new", h.RequireAuth(h.CreateArticle))
	s.router.Get("/dashboard/{id}/edit", h.RequireAuth(h.EditArticleForm))
	s.router.Post("/dashboard/{id}/edit", h.RequireAuth(h.UpdateArticle))
	s.router.Post("/dashboard/{id}/delete", h.RequireAuth(h.DeleteArticle))
	s.router.Post("/dashboard/{id}/publish", h.RequireAuth(h.PublishArticle))
	s.router.Post("/dashboard/{id}/unpublish", h.RequireAuth(h.UnpublishArticle))

	s.router.Get("/tags", h.RequireAuth(h.Tags))
	s.router.Post("/tags", h.RequireAuth(h.CreateTag))
	s.router.Post("/tags/{id}/delete", h.RequireAuth(h.DeleteTag))

	s.router.Post("/preview", h.Preview)
	s.router.Get("/diagrams/{id}", h.Diagram)
	s.router.Get("/styles/highlight.css", h.Stylesheet)

	if s.watcher != nil {
		s.router.Get("/live", h.LivePreview(s.watcher))
	}
}

// Start restores the persisted session, then serves until a signal
// arrives and shuts down gracefully.
//
// RESTORE BEFORE SERVE:
// The session restore runs before the listener opens so the first page
// load already sees the logged-in user — serving earlier would flash a
// logged-out UI and then flip.
func (s *Server) Start() error {
	defer s.db.Close()

	restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 10*time.Second)
	err := s.session.Restore(restoreCtx)
	cancelRestore()
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if s.watcher != nil {
		go func() {
			if err := s.watcher.Run(watchCtx); err != nil && err != context.Canceled {
				s.logger.Error("preview watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("backend", s.config.BackendURL),
			slog.String("state", s.config.StatePath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
