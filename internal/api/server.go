package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/meetbrief/internal/config"
	"github.com/snarg/meetbrief/internal/metrics"
)

// Pipeline is the processing surface the server needs.
type Pipeline interface {
	Processor
	PipelineStatus
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

// NewServer builds the router. mqtt may be nil.
func NewServer(cfg *config.Config, pipeline Pipeline, mqtt MQTTStatus, version string, startTime time.Time, log zerolog.Logger) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(cfg, pipeline, mqtt, version, startTime, log),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// NewRouter returns the HTTP handler tree.
func NewRouter(cfg *config.Config, pipeline Pipeline, mqtt MQTTStatus, version string, startTime time.Time, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(Logger(log))
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORS)

	tools := map[string]string{"ffprobe": cfg.FFprobePath, "ffmpeg": cfg.FFmpegPath}
	health := NewHealthHandler(pipeline, mqtt, tools, version, startTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	NewUploadHandler(pipeline, cfg.MaxUploadBytes, log).Routes(r)

	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
