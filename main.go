package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/supporttools/GoDBVault/pkg/api"
	_ "github.com/supporttools/GoDBVault/pkg/backup/database/mongodb"
	_ "github.com/supporttools/GoDBVault/pkg/backup/database/mysql"
	_ "github.com/supporttools/GoDBVault/pkg/backup/database/postgresql"
	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/metrics"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/scheduler"
	"github.com/supporttools/GoDBVault/pkg/security"
	"github.com/supporttools/GoDBVault/pkg/storage"
	"github.com/supporttools/GoDBVault/pkg/tasks"
	"github.com/supporttools/GoDBVault/pkg/version"
)

func main() {
	log.Printf("Starting %s", version.Info())

	// Load and validate configuration
	config.LoadConfiguration()
	if err := config.ValidateConfig(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	if config.CFG.Debug {
		config.DisplayConfiguration()
	}

	// Initialize credential encryption before anything touches profiles
	if err := security.Initialize(config.CFG.Encryption.Key); err != nil {
		log.Fatalf("Failed to initialize credential encryption: %v", err)
	}

	// Initialize the profile and artifact registry
	if err := registry.Initialize(); err != nil {
		log.Fatalf("Failed to initialize registry database: %v", err)
	}

	// Initialize the backup storage backend
	store, err := storage.NewBackend()
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}

	// Shared connection pool manager
	pools := pool.NewManager(config.CFG.Pool.Size)

	// Background task runner and the operations it executes
	runner := tasks.NewRunner(config.CFG.Tasks.HistoryPath)
	db := registry.GetDB()
	profiles := registry.NewProfileRepository(db)
	artifacts := registry.NewArtifactRepository(db)
	ops := tasks.NewOperations(runner, store, profiles, artifacts, pools)

	// Initialize scheduler
	sched, err := scheduler.NewScheduler(ops)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Setup scheduled jobs
	if err := sched.SetupJobs(); err != nil {
		log.Fatalf("Failed to setup scheduled jobs: %v", err)
	}

	// Start the scheduler
	sched.Start()

	// Start the API server
	apiServer := api.NewServer(ops, store, profiles, artifacts, pools, sched)
	httpServer := apiServer.Start()

	// Start the metrics server
	go metrics.StartMetricsServer(config.CFG.Metrics.Port)

	// Setup signal handling for graceful shutdown
	setupSignalHandling(sched, runner, pools, httpServer)

	// Block indefinitely
	log.Println("GoDBVault is running. Press Ctrl+C to exit.")
	sched.WaitForever()
}

// setupSignalHandling configures graceful shutdown on SIGINT or SIGTERM
func setupSignalHandling(sched *scheduler.Scheduler, runner *tasks.Runner, pools *pool.Manager, httpServer *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-c
		fmt.Printf("Received signal %s, shutting down...\n", sig)

		// Stop accepting new work first
		sched.Stop()
		if httpServer != nil {
			if err := httpServer.Close(); err != nil {
				log.Printf("Error shutting down API server: %v", err)
			}
		}

		// Let in-flight tasks finish so no backup is cut off mid-dump
		log.Println("Waiting for running tasks to finish...")
		runner.Wait()

		if err := pools.Shutdown(); err != nil {
			log.Printf("Error shutting down connection pools: %v", err)
		}
		if err := registry.Close(); err != nil {
			log.Printf("Error closing registry database: %v", err)
		}

		os.Exit(0)
	}()
}
