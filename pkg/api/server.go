// Package api exposes the JSON surface for submitting long-running database
// operations, inspecting task results, and managing stored backup artifacts.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/scheduler"
	"github.com/supporttools/GoDBVault/pkg/storage"
	"github.com/supporttools/GoDBVault/pkg/tasks"
	"github.com/supporttools/GoDBVault/pkg/version"
)

// Server represents the API HTTP server
type Server struct {
	httpServer *http.Server
	ops        *tasks.Operations
	store      storage.Backend
	profiles   *registry.ProfileRepository
	artifacts  *registry.ArtifactRepository
	pools      *pool.Manager
	scheduler  *scheduler.Scheduler
}

// NewServer creates a new API server instance
func NewServer(ops *tasks.Operations, store storage.Backend, profiles *registry.ProfileRepository, artifacts *registry.ArtifactRepository, pools *pool.Manager, sched *scheduler.Scheduler) *Server {
	return &Server{
		ops:       ops,
		store:     store,
		profiles:  profiles,
		artifacts: artifacts,
		pools:     pools,
		scheduler: sched,
	}
}

// Handler builds the route table. Exposed so tests can drive the full
// routing stack without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return logRequestMiddleware(mux)
}

// Start starts the API HTTP server
func (s *Server) Start() *http.Server {
	// Read/write bounds are generous because imports and downloads carry
	// whole dump files through this server.
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", config.CFG.API.Port),
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  30 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Printf("API server running on port %s", config.CFG.API.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	return s.httpServer
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthCheckHandler)

	// Task submission and status
	tasksHandler := NewTasksHandler(s.ops, s.store)
	tasksHandler.RegisterRoutes(mux)

	// Artifact catalog operations
	artifactsHandler := NewArtifactsHandler(s.store, s.artifacts)
	artifactsHandler.RegisterRoutes(mux)

	// Connection profile checks
	profilesHandler := NewProfilesHandler(s.profiles, s.pools)
	profilesHandler.RegisterRoutes(mux)

	// Schedule visibility
	schedulesHandler := NewSchedulesHandler(s.scheduler)
	schedulesHandler.RegisterRoutes(mux)
}

// healthCheckHandler returns a simple health status
func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": version.Version,
		"time":    time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("Error encoding health check response: %v", err)
	}
}

// logRequestMiddleware logs HTTP requests
func logRequestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("HTTP %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}
