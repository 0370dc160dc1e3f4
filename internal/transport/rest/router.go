package rest

import (
	"net/http"
	"os"
	"time"

	"agentsurvey/internal/repository"
	"agentsurvey/internal/service"
	"agentsurvey/internal/transport/rest/handler"
	"agentsurvey/internal/transport/rest/middleware"
	"agentsurvey/internal/transport/ws"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService           *service.AuthService
	SurveyService         *service.SurveyService
	AdministrationService *service.AdministrationService
	Runner                *service.Runner
	RunRepo               repository.RunRepo
	ResultRepo            repository.ResultRepo
	WSHub                 *ws.Hub
	Logger                *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService)
	surveyHandler := handler.NewSurveyHandler(c.SurveyService)
	adminHandler := handler.NewAdministrationHandler(c.AdministrationService, c.SurveyService, c.ResultRepo)
	runHandler := handler.NewRunHandler(c.SurveyService, c.Runner, c.RunRepo, c.ResultRepo)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.RunRepo, logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)
	r.Use(accessLog(logger))

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/runs/{runId}", wsHandler.RunWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Operator routes (require operator auth)
	opRoutes := v1.NewRoute().Subrouter()
	opRoutes.Use(authMW.RequireOperator)

	opRoutes.HandleFunc("/surveys", surveyHandler.Create).Methods("POST", "OPTIONS")
	opRoutes.HandleFunc("/surveys", surveyHandler.List).Methods("GET", "OPTIONS")
	opRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Get).Methods("GET", "OPTIONS")
	opRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Update).Methods("PUT", "OPTIONS")
	opRoutes.HandleFunc("/surveys/{surveyId}", surveyHandler.Delete).Methods("DELETE", "OPTIONS")

	opRoutes.HandleFunc("/surveys/{surveyId}/prompts", adminHandler.Prompts).Methods("POST", "OPTIONS")
	opRoutes.HandleFunc("/surveys/{surveyId}/administrations", adminHandler.Administer).Methods("POST", "OPTIONS")
	opRoutes.HandleFunc("/results/{resultId}", adminHandler.GetResult).Methods("GET", "OPTIONS")

	opRoutes.HandleFunc("/surveys/{surveyId}/runs", runHandler.Start).Methods("POST", "OPTIONS")
	opRoutes.HandleFunc("/runs/{runId}", runHandler.Get).Methods("GET", "OPTIONS")
	opRoutes.HandleFunc("/runs/{runId}/results", runHandler.Results).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, PUT, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func accessLog(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// upgrades need the raw writer to hijack
			if websocket.IsWebSocketUpgrade(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("elapsed", time.Since(start)))
		})
	}
}
