// Package server provides the HTTP API for document upload and question answering.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/config"
	"pdf-rag/internal/ingest"
	"pdf-rag/internal/metrics"
	"pdf-rag/internal/models"
)

// Ingester runs uploaded documents through the ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, sources []ingest.Source) (*ingest.Report, error)
}

// Answerer answers a question from the indexed collection.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.Answer, error)
}

// Server is the HTTP server for the RAG API.
type Server struct {
	ingester Ingester
	answerer Answerer
	metrics  *metrics.Metrics
	config   *config.ServerConfig
	server   *http.Server
}

// NewServer creates a server with the given dependencies. A nil m gets a fresh registry.
func NewServer(ing Ingester, ans Answerer, m *metrics.Metrics, cfg *config.ServerConfig) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		ingester: ing,
		answerer: ans,
		metrics:  m,
		config:   cfg,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(log.Logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Handled request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Timeout(timeout))

	r.Post("/documents", s.handleUploadDocuments)
	r.Post("/question", s.handleQuestion)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", s.server.Addr).Msg("Starting server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
