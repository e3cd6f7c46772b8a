package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/hearcheck/internal/api"
	"github.com/RMahshie/hearcheck/internal/audiometry"
	"github.com/RMahshie/hearcheck/internal/config"
	"github.com/RMahshie/hearcheck/internal/repository/backend"
	"github.com/RMahshie/hearcheck/internal/tone"
	"github.com/RMahshie/hearcheck/pkg/models"
)

const apiVersion = "1.0.0"

func main() {
	// Configure zerolog for structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()
	results, store, err := backend.OpenResults(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open result store")
	}
	defer store.Close()

	var hub *tone.WebSocketHub
	if cfg.Audio.Backend == "websocket" {
		hub = tone.NewWebSocketHub()
	}
	sessions := audiometry.NewManager(audiometry.ManagerConfig{
		Ladder:       cfg.Test.Ladder(),
		ToneDuration: cfg.Test.ToneDuration,
		AutoPlay:     cfg.Test.AutoPlay,
		SessionTTL:   cfg.Test.SessionTTL,
	}, outputFactory(cfg.Audio, hub), results, audiometry.SystemClock)

	// Create Chi router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(zerologLogger())
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(middleware.Compress(5))

	// Create Huma API
	humaConfig := huma.DefaultConfig("Hearcheck API", apiVersion)
	humaConfig.DocsPath = "/api/docs"
	humaAPI := humachi.New(router, humaConfig)

	// Register health endpoint
	huma.Register(humaAPI, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = apiVersion
		resp.Body.Sessions = sessions.Count()
		resp.Body.Time = time.Now()
		return resp, nil
	})

	api.RegisterRoutes(router, humaAPI, sessions, results, hub, cfg.Server.AllowedOrigins)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Str("addr", srv.Addr).Str("audio", cfg.Audio.Backend).Msg("Starting Hearcheck API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// stops every tone still playing
	sessions.Close()
	log.Info().Msg("Server exited")
}

// outputFactory returns how each session opens its audio output
func outputFactory(cfg config.Audio, hub *tone.WebSocketHub) audiometry.OutputFactory {
	switch cfg.Backend {
	case "websocket":
		return hub.Open
	case "ffplay":
		return func(uuid.UUID) (tone.Output, error) {
			out, err := tone.NewFFplayOutput(cfg.FFplayCmd)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
	case "oto":
		return func(uuid.UUID) (tone.Output, error) {
			out, err := tone.NewOtoOutput(tone.DefaultFormat)
			if err != nil {
				return nil, err
			}
			return out, nil
		}
	default:
		return nil
	}
}

// zerologLogger returns a Chi middleware that logs HTTP requests using zerolog
func zerologLogger() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Str("remote_ip", r.RemoteAddr).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
