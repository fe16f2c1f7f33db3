// Package server exposes the dispatcher and status sink over HTTP.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/singleflight"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/logging"
	"github.com/backmassage/vidopt/internal/pipeline"
	"github.com/backmassage/vidopt/internal/probe"
	"github.com/backmassage/vidopt/internal/status"
)

// Dispatcher starts jobs and reports aggregate counters.
// *pipeline.Dispatcher satisfies it.
type Dispatcher interface {
	Start(path string) (pipeline.Batch, error)
	Stats() pipeline.RunStats
}

// Prober describes the file shown in the status response.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.ProbeResult, error)
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	cfg    *config.Config
	log    *logging.Logger
	sink   *status.Sink
	disp   Dispatcher
	prober Prober
	router chi.Router

	// video_info is probed once per in-flight file. Probes run outside
	// infoMu; concurrent requests for one path share a probe.
	infoMu    sync.Mutex
	infoCache map[string]*probe.VideoInfo
	infoGroup singleflight.Group
}

// New builds the router.
func New(cfg *config.Config, log *logging.Logger, sink *status.Sink, disp Dispatcher, prober Prober) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		cfg:    cfg,
		log:    log,
		sink:   sink,
		disp:   disp,
		prober:    prober,
		infoCache: make(map[string]*probe.VideoInfo),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/stats", s.handleStats)
	r.Post("/process", s.handleProcess)
	r.Post("/process-file", s.handleProcessFile)

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on cfg.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request at debug level once the response is written.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.With("request_id", middleware.GetReqID(r.Context())).Debug(s.cfg.Verbose,
			"%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start).Round(time.Millisecond))
	})
}
