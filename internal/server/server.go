package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jpalmerr/parkboard/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "ParkBoard"
)

// Source provides the rendered dashboard data.
//
// Values are passed through to JSON encoding and html/template untouched,
// so the server stays independent of the parkboard package's types.
type Source interface {
	// Overview returns the index page data: stats plus one summary per location.
	Overview() any

	// Locations returns all configured locations.
	Locations() any

	// Location returns a single location, or false if unknown.
	Location(id string) (any, bool)

	// Grid renders the spot grid of a location against the current live
	// snapshot, or returns false if the location is unknown.
	Grid(id string) (any, bool)

	// Stats returns dashboard statistics.
	Stats() any

	// Sessions returns all configured sessions.
	Sessions() any

	// Users returns all configured users.
	Users() any

	// Live returns the current live snapshot.
	Live() any
}

// Config holds server settings.
type Config struct {
	// Port is the TCP port to listen on.
	Port int

	// Title is the dashboard title. Defaults to "ParkBoard".
	Title string

	// Assets holds the page templates under assets/*.tmpl. Nil disables
	// the HTML pages; the API keeps working.
	Assets fs.FS

	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	// Logger receives server events. Nil means slog.Default().
	Logger *slog.Logger
}

// Server handles HTTP requests for the ParkBoard dashboard and API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	source     Source
	store      store.Store
	cfg        Config
	pages      *template.Template
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Templates are parsed here so a broken asset fails fast. The server is not
// started until [Server.Start] is called.
func NewServer(src Source, st store.Store, cfg Config) (*Server, error) {
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		source: src,
		store:  st,
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Assets != nil {
		pages, err := template.New("").Funcs(templateFuncs).ParseFS(cfg.Assets, "assets/*.tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to parse dashboard templates: %w", err)
		}
		s.pages = pages
	}

	return s, nil
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// full paths on the root router so a wrong method answers 405, not 404
	r.HandleFunc("/api/locations", s.handleLocations).Methods(http.MethodGet)
	r.HandleFunc("/api/locations/{id}/grid", s.handleGrid).Methods(http.MethodGet)
	r.HandleFunc("/api/locations/{id}/sse", s.handleSSE).Methods(http.MethodGet)
	r.HandleFunc("/api/live", s.handleLive).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/users", s.handleUsers).Methods(http.MethodGet)

	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if s.cfg.Metrics != nil {
		r.Handle("/metrics", s.cfg.Metrics).Methods(http.MethodGet)
	}

	if s.pages != nil {
		r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
		r.HandleFunc("/locations/{id}", s.handleLocationPage).Methods(http.MethodGet)
	}

	r.Use(s.logRequests)
	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.cfg.Port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Locations())
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	grid, ok := s.source.Grid(mux.Vars(r)["id"])
	if !ok {
		http.Error(w, "location not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, grid)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Live())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Stats())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Sessions())
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.source.Users())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// writeJSON encodes v with no-cache headers.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// logRequests logs every request at debug level.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
