package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/supporttools/GoDBVault/pkg/database/common"
	"github.com/supporttools/GoDBVault/pkg/database/pool"
	"github.com/supporttools/GoDBVault/pkg/registry"
)

// testConnectionTimeout bounds how long a liveness probe may hang on an
// unreachable server before the API answers.
const testConnectionTimeout = 10 * time.Second

// ProfilesHandler handles connection profile API endpoints
type ProfilesHandler struct {
	profiles *registry.ProfileRepository
	pools    *pool.Manager
}

// NewProfilesHandler creates a new profiles handler
func NewProfilesHandler(profiles *registry.ProfileRepository, pools *pool.Manager) *ProfilesHandler {
	return &ProfilesHandler{profiles: profiles, pools: pools}
}

// RegisterRoutes registers the profile API routes on the provided mux
func (h *ProfilesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/profiles/test", h.handleTestConnection)
}

// handleTestConnection probes the database a profile points at and reports
// the verdict in the body. The HTTP status stays 200 for a reachable API
// with an unreachable database; only lookup and build failures error.
func (h *ProfilesHandler) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing required parameter: name", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.GetByName(name)
	if err != nil {
		http.Error(w, "Profile not found: "+err.Error(), http.StatusNotFound)
		return
	}

	connector, err := common.New(profile.Details(), h.pools)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer func() {
		if err := connector.Close(); err != nil {
			log.Printf("Error closing test connection for profile %s: %v", name, err)
		}
	}()

	ctx, cancel := context.WithTimeout(r.Context(), testConnectionTimeout)
	defer cancel()

	ok, detail := connector.TestConnection(ctx)
	status := "success"
	if !ok {
		status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status":  status,
		"message": detail,
	}); err != nil {
		log.Printf("Error encoding connection test response: %v", err)
	}
}
