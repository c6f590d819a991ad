package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/scheduler"
)

// SchedulesHandler handles schedule visibility API endpoints. Schedules are
// configuration, so the API only reads them.
type SchedulesHandler struct {
	scheduler *scheduler.Scheduler
}

// NewSchedulesHandler creates a new schedules handler
func NewSchedulesHandler(sched *scheduler.Scheduler) *SchedulesHandler {
	return &SchedulesHandler{scheduler: sched}
}

// RegisterRoutes registers the schedule API routes on the provided mux
func (h *SchedulesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/schedules", h.handleSchedules)
}

// scheduleResponse is the response structure for schedule information
type scheduleResponse struct {
	Name    string `json:"name"`
	Profile string `json:"profile"`
	Cron    string `json:"cron"`
	NextRun string `json:"nextRun,omitempty"`
}

// handleSchedules returns the configured backup schedules with their next
// firing times
func (h *SchedulesHandler) handleSchedules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.scheduler == nil {
		http.Error(w, "Scheduler not configured", http.StatusServiceUnavailable)
		return
	}

	responses := make([]scheduleResponse, 0, len(config.CFG.Schedules))
	for i, schedule := range config.CFG.Schedules {
		// Unnamed schedules get the same positional names SetupJobs
		// assigns, so next-run lookups line up.
		name := schedule.Name
		if name == "" {
			name = fmt.Sprintf("schedule-%d", i+1)
		}

		resp := scheduleResponse{
			Name:    name,
			Profile: schedule.Profile,
			Cron:    schedule.Cron,
		}

		if nextRun, err := h.scheduler.GetNextRunTime(name); err == nil && !nextRun.IsZero() {
			resp.NextRun = nextRun.Format(time.RFC3339)
		}

		responses = append(responses, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"schedules": responses,
		"count":     len(responses),
	}); err != nil {
		log.Printf("Error encoding schedules response: %v", err)
	}
}
