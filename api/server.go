package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/database"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

var defaultAcceptedOrigins = []string{"http://localhost:5173", "https://thebrightlayer.com"}

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(cfg map[string]string, database database.Database, deps Dependencies) (Server, error) {
	if deps.Proposal == nil || deps.QuoteReply == nil {
		return Server{}, fmt.Errorf("proposal services are required")
	}

	port := config.GetString(cfg, "PORT", "5000")
	address := fmt.Sprintf("0.0.0.0:%s", port)

	readTimeout := time.Duration(config.GetInt(cfg, "READ_TIMEOUT_SECONDS", 180)) * time.Second
	writeTimeout := time.Duration(config.GetInt(cfg, "WRITE_TIMEOUT_SECONDS", 180)) * time.Second
	idleTimeout := time.Duration(config.GetInt(cfg, "IDLE_TIMEOUT_SECONDS", 180)) * time.Second

	server := &http.Server{
		Addr:         address,
		Handler:      newRouter(cfg, database, deps),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return Server{server, time.Now()}, nil
}

func newRouter(cfg map[string]string, database database.Database, deps Dependencies) *chi.Mux {
	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(middleware.RealIP)
	chiRouter.Use(LogInternalServerErrors)

	acceptedOrigins := config.GetList(cfg, "ACCEPTED_ORIGINS", defaultAcceptedOrigins)
	chiRouter.Use(CORSCheckMiddleware(acceptedOrigins))
	chiRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   acceptedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := initializeHandlers(database, deps)
	limiter := newIPRateLimiter(config.GetInt(cfg, "PROPOSAL_RATE_LIMIT_PER_MINUTE", 10))

	chiRouter.Get("/", liveness())

	basePath := "/" + strings.Trim(config.GetString(cfg, "API_BASE_PATH", "/api"), "/")
	if basePath == "/" {
		setupRoutes(chiRouter, handlers, limiter)
	} else {
		chiRouter.Route(basePath, func(r chi.Router) {
			setupRoutes(r, handlers, limiter)
		})
	}

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("⚡ Server running on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

// Uptime reports how long ago the server was built.
func (s Server) Uptime() time.Duration {
	return time.Since(s.startupTime)
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Dur("uptime", s.Uptime()).Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
