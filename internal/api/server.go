// Package api exposes the admission engine and the graduation controller
// over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"proof-engine/internal/common/config"
	"proof-engine/internal/common/logger"
	"proof-engine/internal/engine/admission"
	"proof-engine/internal/engine/graduation"
	"proof-engine/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Admitter is the admission surface the widget runtime calls.
type Admitter interface {
	Admit(ctx context.Context, req admission.Request) (*admission.Selection, error)
	Confirm(ctx context.Context, req admission.ConfirmRequest) (*models.SessionState, error)
	RecordClick(ctx context.Context, eventID string) error
}

type Graduator interface {
	Status(ctx context.Context, widgetID string) (*models.GraduationStatus, error)
	AutoGraduate(ctx context.Context, widgetID string) (*graduation.Outcome, error)
}

// Check is a named readiness probe.
type Check func(ctx context.Context) error

type Server struct {
	cfg       config.APIConfig
	admitter  Admitter
	graduator Graduator
	checks    map[string]Check
	logger    logger.Logger
	http      *http.Server
}

func NewServer(cfg config.APIConfig, admitter Admitter, graduator Graduator, checks map[string]Check, log logger.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		admitter:  admitter,
		graduator: graduator,
		checks:    checks,
		logger:    log.Named("api"),
	}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Routes(),
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/widgets/{widgetID}", func(r chi.Router) {
			r.Post("/admissions", s.admit)
			r.Post("/displays", s.confirm)
			r.Get("/graduation", s.graduationStatus)
			r.Post("/graduation", s.graduate)
		})
		r.Post("/events/{eventID}/clicks", s.click)
	})
	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		fields := map[string]interface{}{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"durationMs": time.Since(start).Milliseconds(),
			"requestId":  middleware.GetReqID(r.Context()),
		}
		if ww.Status() >= http.StatusInternalServerError {
			s.logger.Warn("HTTP request failed", fields)
			return
		}
		s.logger.Debug("HTTP request", fields)
	})
}
