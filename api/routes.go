package api

import (
	"github.com/gorilla/mux"
	"github.com/stormline/dispatch/internal/classify"
	"github.com/stormline/dispatch/internal/config"
	"github.com/stormline/dispatch/internal/db"
	"github.com/stormline/dispatch/internal/dispatch"
	"github.com/stormline/dispatch/internal/notify"
	"github.com/stormline/dispatch/internal/repository/sqlite"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, db *db.DB, provider classify.Provider, hub *notify.Hub) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Repository
	repo := sqlite.New(db, logger)

	// Services
	classifier := classify.New(repo, provider, cfg.Cascade.ComplianceMode, logger)
	service := dispatch.NewService(repo, repo, logger)

	var notifier JobNotifier
	if hub != nil {
		notifier = hub
	}

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo, cfg.JWTSecret, cfg.TokenDuration)
	chatHandler := NewChatHandler(classifier, repo, service, notifier, cfg.Cascade.HistoryTurns)
	jobsHandler := NewJobsHandler(service, repo, notifier)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// Customer-facing endpoints: chat, incident reporting, feedback. The
	// reporter is not a contractor and carries no token.
	r.HandleFunc("/v1/chat", chatHandler.Chat).Methods("POST")
	r.HandleFunc("/v1/jobs", jobsHandler.ReportIncident).Methods("POST")
	r.HandleFunc("/v1/jobs/{id}/feedback", jobsHandler.SubmitFeedback).Methods("POST")

	if hub != nil {
		r.HandleFunc("/v1/ws/contractor", hub.Subscribe)
	}

	// Contractor endpoints, JWT protected
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	apiV1.HandleFunc("/jobs/available", jobsHandler.AvailableJobs).Methods("GET")
	apiV1.HandleFunc("/jobs/active", jobsHandler.ActiveJobs).Methods("GET")
	apiV1.HandleFunc("/jobs/{id}/accept", jobsHandler.AcceptJob).Methods("POST")
	apiV1.HandleFunc("/jobs/{id}/status", jobsHandler.UpdateStatus).Methods("PUT")
	apiV1.HandleFunc("/contractors/stats", jobsHandler.Stats).Methods("GET")

	return r
}
