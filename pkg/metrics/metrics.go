// Package metrics provides Prometheus metrics for backup and task operations.
package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics
var (
	// BackupCount tracks the total number of backups performed
	BackupCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbvault_backup_total",
		Help: "The total number of backups performed",
	}, []string{"engine", "database", "status"})

	// BackupDuration measures time taken to perform a backup
	BackupDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbvault_backup_duration_seconds",
		Help:    "Time taken to perform a backup",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "database"})

	// BackupSize tracks size of the backup file in bytes
	BackupSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dbvault_backup_size_bytes",
		Help: "Size of the backup file in bytes",
	}, []string{"engine", "database", "storage"})

	// LastBackupTimestamp records timestamp of the last successful backup
	LastBackupTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dbvault_backup_last_timestamp",
		Help: "Timestamp of the last successful backup",
	}, []string{"engine", "database"})

	// RestoreCount tracks the total number of restores performed
	RestoreCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbvault_restore_total",
		Help: "The total number of restores performed",
	}, []string{"engine", "database", "status"})

	// UploadCount tracks the total number of storage uploads performed
	UploadCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbvault_storage_upload_total",
		Help: "The total number of storage uploads performed",
	}, []string{"engine", "database", "status"})

	// UploadDuration measures time taken to upload a backup to storage
	UploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbvault_storage_upload_duration_seconds",
		Help:    "Time taken to upload a backup to storage",
		Buckets: prometheus.DefBuckets,
	}, []string{"engine", "database"})

	// ArtifactDeletions counts artifacts deleted by explicit request
	ArtifactDeletions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbvault_artifact_deletions_total",
		Help: "The total number of artifacts deleted",
	}, []string{"storage"})

	// ActiveTasks tracks background tasks currently running
	ActiveTasks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dbvault_active_tasks",
		Help: "Number of background tasks currently running",
	}, []string{"kind"})
)

// StartMetricsServer starts the HTTP server for metrics and health check endpoints
func StartMetricsServer(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting metrics server on port %s", port)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Failed to start metrics server: %v", err)
	}
}
