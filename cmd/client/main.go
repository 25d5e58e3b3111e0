// Package main is the entry point for the inkpad authoring client.
//
// The main package stays minimal: read configuration from the
// environment, build the logger, and hand everything to internal/server
// which owns the wiring. The client serves its UI on localhost and
// talks to the publishing backend over its REST API.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sakif/inkpad/internal/server"
)

func main() {
	// === 1. SET UP LOGGING ===
	// Structured text logs to stdout. Debug level is fine for a tool
	// that runs on the author's own machine.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// === 2. READ CONFIGURATION ===
	// PORT          — UI port (default 3000)
	// BACKEND_URL   — base URL of the publishing backend API
	// STATE_PATH    — SQLite file for the persisted session and prefs
	// PREVIEW_FILE  — optional markdown file to watch and serve at /live
	port := 3000
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:8000/api"
	}

	statePath := "data/inkpad.db"
	if envState := os.Getenv("STATE_PATH"); envState != "" {
		statePath = envState
	}

	// Ensure the state directory exists before sqlite opens the file.
	stateDir := filepath.Dir(statePath)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		logger.Error("failed to create state directory",
			slog.String("dir", stateDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 3. CREATE AND START THE SERVER ===
	cfg := server.Config{
		Port:        port,
		BackendURL:  backendURL,
		StatePath:   statePath,
		PreviewFile: os.Getenv("PREVIEW_FILE"),
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() restores the persisted session, then blocks until the
	// server is shut down (Ctrl+C or SIGTERM).
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
