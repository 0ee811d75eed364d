// Package server serves the current snapshot to Prometheus scrapers.
package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pario-ai/opencode-exporter/pkg/exposition"
	"github.com/pario-ai/opencode-exporter/pkg/models"
)

// SnapshotSource returns the snapshot to serve. It must be cheap and
// non-blocking.
type SnapshotSource interface {
	CurrentOrEmpty() *models.Snapshot
}

// Server is the scrape endpoint.
type Server struct {
	exporter *exposition.Exporter
	logger   *zap.Logger
	router   chi.Router
}

// New creates a Server rendering snapshots from src.
func New(src SnapshotSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		exporter: exposition.New(src.CurrentOrEmpty),
		logger:   logger,
		router:   chi.NewRouter(),
	}
	s.router.Use(s.logRequest)
	s.router.Get("/metrics", s.handleMetrics)
	s.router.Get("/", s.handleMetrics)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug(r.Method+" "+r.URL.Path, zap.String("remote", r.RemoteAddr))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.exporter.Write(&buf); err != nil {
		s.logger.Error("render metrics", zap.Error(err))
		http.Error(w, "failed to render metrics", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", exposition.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Listen binds addr. Binding eagerly lets startup fail before the poll loop
// starts when the port is unavailable.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server running", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
