package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"locksync/internal/view"
)

// Server represents the HTTP API server
// Provides endpoints for Prometheus metrics, health checks, and the
// materialized lock/key/transaction state
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	view       *view.View
	port       int
}

// NewServer creates a new API server instance reading from the view
func NewServer(port int, v *view.View) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:  mux,
		view: v,
		port: port,
	}

	// Register all HTTP routes
	s.registerRoutes()

	return s
}

// registerRoutes sets up all HTTP routes
func (s *Server) registerRoutes() {
	// Core endpoints
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", s.handleMetrics())

	// State endpoints
	s.mux.HandleFunc("/locks", s.handleLocks)
	s.mux.HandleFunc("/locks/", s.handleLockRoutes)
	s.mux.HandleFunc("/transactions/", s.handleTransactionRoutes)
}

// handleLocks routes to list locks (without trailing slash)
func (s *Server) handleLocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleListLocks(w, r)
}

// handleLockRoutes routes lock sub-endpoints (with trailing slash)
func (s *Server) handleLockRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/locks/")
	parts := strings.Split(path, "/")

	// GET /locks/{address}
	if len(parts) == 1 {
		s.handleGetLock(w, r)
		return
	}

	// GET /locks/{address}/keys
	if len(parts) == 2 && parts[1] == "keys" {
		s.handleGetLockKeys(w, r)
		return
	}

	s.sendError(w, "Endpoint not found", http.StatusNotFound)
}

// handleTransactionRoutes routes transaction endpoints
func (s *Server) handleTransactionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.handleGetTransaction(w, r)
}

// Start starts the HTTP server in a goroutine
// Returns immediately after starting the server
func (s *Server) Start() error {
	go func() {
		slog.Info("API server starting",
			"port", s.port,
			"endpoints", []string{"/", "/health", "/metrics", "/locks", "/transactions"},
		)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("API server error", "error", err)
		}
	}()

	// Give the server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Shutdown gracefully shuts down the HTTP server
// Waits for active connections to close or context to timeout
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("API server shutting down...")
	return s.httpServer.Shutdown(ctx)
}
