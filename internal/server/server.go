// internal/server/server.go

package server

import (
	"context"
	"net/http"
	"time"

	"influence-dashboard/internal/common/config"
	"influence-dashboard/internal/common/logger"
	"influence-dashboard/internal/dashboard"
	"influence-dashboard/internal/server/handlers"
	"influence-dashboard/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer wires the dashboard API routes.
func NewServer(
	cfg config.ServerConfig,
	service *dashboard.Service,
	boards *dashboard.Boards,
	prefs session.PreferenceStore,
	log logger.Logger,
) *Server {
	router := chi.NewRouter()

	requestTimeout := config.GetDuration(cfg.WriteTimeout)
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", handlers.SessionHeader},
		ExposedHeaders:   []string{handlers.SessionHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	insightsHandler := handlers.NewInsightsHandler(service, boards, log)
	preferencesHandler := handlers.NewPreferencesHandler(prefs, log)

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Route("/v1", func(r chi.Router) {
			r.Use(handlers.SessionMiddleware)

			r.Get("/compare", insightsHandler.Compare)
			r.Get("/top-movers", insightsHandler.TopMovers)
			r.Get("/narrative-alerts", insightsHandler.NarrativeAlerts)
			r.Get("/trend", insightsHandler.Trend)
			r.Get("/entities", insightsHandler.Entities)
			r.Get("/dashboard", insightsHandler.Dashboard)

			r.Get("/preferences", preferencesHandler.Get)
			r.Put("/preferences", preferencesHandler.Put)
		})
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  config.GetDuration(cfg.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.WriteTimeout),
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs one line per request through the structured logger.
func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("http request", map[string]interface{}{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"requestId":  middleware.GetReqID(r.Context()),
					"durationMs": time.Since(start).Milliseconds(),
				})
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
