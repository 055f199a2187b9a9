// Package api exposes report building over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/sells-group/property-report/internal/render"
	"github.com/sells-group/property-report/internal/report"
)

// maxBodyBytes bounds request bodies; uploaded images arrive as data URLs.
const maxBodyBytes = 50 << 20

// Option configures a Server.
type Option func(*Server)

// WithStaticDir serves files from dir for paths no API route matches.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// Server routes HTTP requests to the report service.
type Server struct {
	svc         *report.Service
	validate    *validator.Validate
	staticDir   string
	newRenderer func(format string) (render.Renderer, error)
}

// NewServer creates a Server.
func NewServer(svc *report.Service, opts ...Option) *Server {
	s := &Server{svc: svc, validate: validator.New(), newRenderer: render.New}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/report", s.handleGetReport)
		r.Post("/report", s.handlePostReport)
		r.Post("/report/download", s.handleDownload)
		r.Get("/locate", s.handleLocate)
		r.Get("/fields", s.handleFields)
		r.Get("/sources/attom", s.handleSourceAPI)
		r.Get("/sources/county", s.handleSourceCounty)
	})

	if s.staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.staticDir)))
	}
	return r
}

// NewHTTPServer wraps the handler with timeouts.
func NewHTTPServer(addr string, h http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
