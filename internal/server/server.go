// Package server exposes the dashboard SPA and the REST API over
// the record store and analytics core.
package server

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/focusdeck/focusdeck/internal/config"
	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/sync"
	"github.com/focusdeck/focusdeck/internal/web"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server that serves the SPA and REST API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	db      *db.DB
	engine  *sync.Engine
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	spaFS      fs.FS
	spaHandler http.Handler

	// testDelay, when nonzero, sleeps before each timeout-wrapped
	// handler so tests with short timeouts never race the handler
	// itself. Production never sets it.
	testDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, database *db.DB, engine *sync.Engine,
	opts ...Option,
) *Server {
	dist, err := web.Assets()
	if err != nil {
		log.Fatalf("embedded frontend not found: %v", err)
	}

	s := &Server{
		cfg:        cfg,
		db:         database,
		engine:     engine,
		mux:        http.NewServeMux(),
		spaFS:      dist,
		spaHandler: http.FileServer(http.FS(dist)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

func (s *Server) routes() {
	// API v1 routes
	s.mux.Handle("GET /api/v1/analytics/distribution", s.withTimeout(s.handleDistribution))
	s.mux.Handle("GET /api/v1/analytics/heatmap", s.withTimeout(s.handleHeatmap))
	s.mux.Handle("GET /api/v1/analytics/durations", s.withTimeout(s.handleDurations))
	s.mux.Handle("GET /api/v1/analytics/suggestions", s.withTimeout(s.handleSuggestions))
	s.mux.Handle("GET /api/v1/analytics/goals", s.withTimeout(s.handleGoals))
	s.mux.Handle("GET /api/v1/analytics/streak", s.withTimeout(s.handleStreak))
	s.mux.Handle("POST /api/v1/analytics/streak/recover", s.withTimeout(s.handleStreakRecover))
	s.mux.Handle("GET /api/v1/analytics/compare", s.withTimeout(s.handleCompare))
	s.mux.Handle("GET /api/v1/analytics/report", s.withTimeout(s.handleReport))
	// Export: no timeout handler, to stream large reports unbuffered.
	s.mux.Handle(
		"GET /api/v1/analytics/report/export",
		http.HandlerFunc(s.handleReportExport),
	)

	s.mux.Handle("GET /api/v1/categories", s.withTimeout(s.handleListCategories))
	s.mux.Handle("GET /api/v1/tasks", s.withTimeout(s.handleListTasks))
	s.mux.Handle("GET /api/v1/sessions", s.withTimeout(s.handleListSessions))
	s.mux.Handle("POST /api/v1/sessions", s.withTimeout(s.handleCreateSession))

	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
	s.mux.HandleFunc("POST /api/v1/sync", s.handleTriggerSync)
	s.mux.Handle("GET /api/v1/sync/status", s.withTimeout(s.handleSyncStatus))

	// SPA fallback: serve embedded frontend
	// Do not use timeout handler for static assets to avoid buffering.
	s.mux.Handle("/", http.HandlerFunc(s.handleSPA))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleTriggerSync(
	w http.ResponseWriter, r *http.Request,
) {
	stats := s.engine.ImportAll(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSyncStatus(
	w http.ResponseWriter, _ *http.Request,
) {
	lastSync := s.engine.LastSync()
	stats := s.engine.LastStats()

	var lastSyncStr string
	if !lastSync.IsZero() {
		lastSyncStr = lastSync.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"last_sync": lastSyncStr,
		"stats":     stats,
	})
}

func (s *Server) handleSPA(w http.ResponseWriter, r *http.Request) {
	// Try to serve the exact file
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	f, err := s.spaFS.Open(path)
	if err == nil {
		f.Close()
		s.spaHandler.ServeHTTP(w, r)
		return
	}

	// SPA fallback: serve index.html for all routes
	r.URL.Path = "/"
	s.spaHandler.ServeHTTP(w, r)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set(
				"Access-Control-Allow-Origin", "*",
			)
			w.Header().Set(
				"Access-Control-Allow-Methods",
				"GET, POST, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type",
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
