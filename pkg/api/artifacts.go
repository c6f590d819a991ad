package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/supporttools/GoDBVault/pkg/metrics"
	"github.com/supporttools/GoDBVault/pkg/registry"
	"github.com/supporttools/GoDBVault/pkg/storage"
	"github.com/supporttools/GoDBVault/pkg/storage/local"
	"github.com/supporttools/GoDBVault/pkg/storage/s3"
)

// presignExpiry bounds how long a generated S3 download link stays valid.
const presignExpiry = 15 * time.Minute

// ArtifactsHandler handles backup artifact API endpoints
type ArtifactsHandler struct {
	store   storage.Backend
	catalog *registry.ArtifactRepository
}

// NewArtifactsHandler creates a new artifacts handler
func NewArtifactsHandler(store storage.Backend, catalog *registry.ArtifactRepository) *ArtifactsHandler {
	return &ArtifactsHandler{store: store, catalog: catalog}
}

// RegisterRoutes registers the artifact API routes on the provided mux
func (h *ArtifactsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/artifacts", h.handleList)
	mux.HandleFunc("/api/artifacts/delete", h.handleDelete)
	mux.HandleFunc("/api/artifacts/download", h.handleDownload)
}

// artifactResponse is the response structure for artifact information
type artifactResponse struct {
	Name      string    `json:"name"`
	Engine    string    `json:"engine"`
	Database  string    `json:"database"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"sizeHuman"`
	Storage   string    `json:"storage"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleList returns the artifact catalog, newest first
func (h *ArtifactsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	artifacts, err := h.catalog.List()
	if err != nil {
		http.Error(w, "Failed to retrieve artifacts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	responses := make([]artifactResponse, 0, len(artifacts))
	for _, artifact := range artifacts {
		responses = append(responses, artifactResponse{
			Name:      artifact.Name,
			Engine:    artifact.Engine,
			Database:  artifact.DatabaseName,
			Size:      artifact.Size,
			SizeHuman: humanize.Bytes(uint64(artifact.Size)),
			Storage:   artifact.Storage,
			CreatedAt: artifact.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"artifacts": responses,
		"count":     len(responses),
	}); err != nil {
		log.Printf("Error encoding artifacts response: %v", err)
	}
}

// handleDelete removes an artifact from storage and the catalog
func (h *ArtifactsHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing required parameter: name", http.StatusBadRequest)
		return
	}

	artifact, err := h.catalog.GetByName(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Artifact %s not found", name), http.StatusNotFound)
		return
	}

	// Storage first: if the object refuses to go, the catalog keeps the
	// record so the delete can be retried.
	if err := h.store.Delete(name); err != nil {
		log.Printf("Error deleting stored artifact %s: %v", name, err)
		http.Error(w, "Failed to delete stored artifact: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.catalog.Delete(name); err != nil {
		log.Printf("Error removing artifact %s from catalog: %v", name, err)
		http.Error(w, "Failed to remove artifact from catalog: "+err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.ArtifactDeletions.WithLabelValues(artifact.Storage).Inc()
	log.Printf("Deleted artifact %s from %s storage", name, artifact.Storage)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Artifact %s deleted", name),
		"name":    name,
	}); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// handleDownload hands a stored artifact back to the caller. S3-backed
// storage answers with a presigned URL so the bytes never transit this
// process; everything else streams the file.
func (h *ArtifactsHandler) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing required parameter: name", http.StatusBadRequest)
		return
	}

	artifact, err := h.catalog.GetByName(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Artifact %s not found", name), http.StatusNotFound)
		return
	}

	switch backend := h.store.(type) {
	case *s3.Client:
		h.downloadViaPresign(w, r, backend, artifact)
	case *local.Client:
		h.serveLocalFile(w, r, backend, artifact)
	default:
		h.serveFetchedCopy(w, r, artifact)
	}
}

// downloadViaPresign generates a presigned URL for the artifact
func (h *ArtifactsHandler) downloadViaPresign(w http.ResponseWriter, r *http.Request, backend *s3.Client, artifact *registry.Artifact) {
	presignedURL, err := backend.PresignDownload(artifact.Name, presignExpiry)
	if err != nil {
		log.Printf("Error generating presigned URL: %v", err)
		http.Error(w, "Failed to generate download link", http.StatusInternalServerError)
		return
	}

	// Check if this is a direct download request
	if r.URL.Query().Get("redirect") == "true" {
		http.Redirect(w, r, presignedURL, http.StatusFound)
		log.Printf("Redirected to presigned URL for artifact: %s", artifact.Name)
		return
	}

	// Otherwise return JSON with the URL and artifact details
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":       "success",
		"message":      "Presigned URL generated successfully",
		"name":         artifact.Name,
		"engine":       artifact.Engine,
		"database":     artifact.DatabaseName,
		"size":         artifact.Size,
		"created_at":   artifact.CreatedAt,
		"download_url": presignedURL,
		"expires_in":   presignExpiry.String(),
	}); err != nil {
		log.Printf("Error encoding download response: %v", err)
	}
}

// serveLocalFile streams the artifact straight from the local backup directory
func (h *ArtifactsHandler) serveLocalFile(w http.ResponseWriter, r *http.Request, backend *local.Client, artifact *registry.Artifact) {
	path := backend.Path(artifact.Name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		http.Error(w, fmt.Sprintf("Artifact file not found on disk: %s", artifact.Name), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", artifact.Name))
	http.ServeFile(w, r, path)

	log.Printf("Served local artifact download: %s", artifact.Name)
}

// serveFetchedCopy downloads the artifact from the backend into a temp file
// and streams that. Covers backends without direct paths or presigning, FTP
// in particular.
func (h *ArtifactsHandler) serveFetchedCopy(w http.ResponseWriter, r *http.Request, artifact *registry.Artifact) {
	tmp, err := os.CreateTemp("", "dbvault-download-*")
	if err != nil {
		http.Error(w, "Failed to stage download: "+err.Error(), http.StatusInternalServerError)
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := h.store.Download(artifact.Name, tmpPath); err != nil {
		log.Printf("Error fetching artifact %s: %v", artifact.Name, err)
		http.Error(w, "Failed to fetch artifact: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", artifact.Name))
	http.ServeFile(w, r, tmpPath)

	log.Printf("Served fetched artifact download: %s", artifact.Name)
}
