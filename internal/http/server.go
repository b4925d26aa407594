package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bizflow/autopilot/internal/log"
	"github.com/bizflow/autopilot/pkg/ai"
	"github.com/bizflow/autopilot/pkg/models"
	"github.com/bizflow/autopilot/pkg/service"
	"github.com/bizflow/autopilot/pkg/storage"
	"github.com/pkg/errors"
)

func StartServer(port string, svc *service.AutomationService) error {
	log.GetLogger().Infof("Starting autopilot server on :%s", port)
	return http.ListenAndServe(":"+port, NewMux(svc))
}

// NewMux builds the HTTP routing table for the engine.
func NewMux(svc *service.AutomationService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/tasks", tasksHandler(svc))
	mux.HandleFunc("/tasks/cancel", cancelTaskHandler(svc))
	mux.HandleFunc("/actions", listActionsHandler(svc))
	mux.HandleFunc("/actions/approve", approveHandler(svc))
	mux.HandleFunc("/actions/reject", rejectHandler(svc))
	mux.HandleFunc("/settings", settingsHandler(svc))
	mux.HandleFunc("/analyze/profitability", profitabilityHandler(svc))
	mux.HandleFunc("/analyze/alerts", alertsHandler(svc))
	mux.HandleFunc("/decisions", decisionsHandler(svc))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Autopilot server is running")
}

func tasksHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tasks, err := svc.ListFollowUpTasks(models.FollowUpStatus(r.URL.Query().Get("status")))
			if err != nil {
				serverError(w, "Failed to list tasks", err)
				return
			}
			writeJSON(w, http.StatusOK, tasks)
		case http.MethodPost:
			var task models.FollowUpTask
			if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			id, err := svc.CreateFollowUpTask(task)
			if err != nil {
				http.Error(w, fmt.Sprintf("Failed to create task: %v", err), http.StatusBadRequest)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]string{"id": id})
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func cancelTaskHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing 'id' parameter", http.StatusBadRequest)
			return
		}
		if err := svc.CancelFollowUpTask(id); err != nil {
			storageError(w, "Failed to cancel task", err)
			return
		}
		fmt.Fprintf(w, "Cancelled task %s\n", id)
	}
}

func listActionsHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		actions, err := svc.ListActions(models.ActionStatus(r.URL.Query().Get("status")))
		if err != nil {
			serverError(w, "Failed to list actions", err)
			return
		}
		writeJSON(w, http.StatusOK, actions)
	}
}

func approveHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing 'id' parameter", http.StatusBadRequest)
			return
		}
		action, err := svc.Approve(r.Context(), id)
		if err != nil {
			storageError(w, "Failed to approve action", err)
			return
		}
		writeJSON(w, http.StatusOK, action)
	}
}

func rejectHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := r.URL.Query().Get("id")
		if id == "" {
			http.Error(w, "Missing 'id' parameter", http.StatusBadRequest)
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if r.Body != nil {
			// The reason is optional; an empty body means the default one.
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		action, err := svc.Reject(r.Context(), id, body.Reason)
		if err != nil {
			storageError(w, "Failed to reject action", err)
			return
		}
		writeJSON(w, http.StatusOK, action)
	}
}

func settingsHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			settings, err := svc.GetSettings()
			if err != nil {
				serverError(w, "Failed to read settings", err)
				return
			}
			writeJSON(w, http.StatusOK, settings)
		case http.MethodPut:
			var body struct {
				Enabled bool `json:"enabled"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
				return
			}
			settings, err := svc.ToggleAutomation(body.Enabled)
			if err != nil {
				serverError(w, "Failed to update settings", err)
				return
			}
			writeJSON(w, http.StatusOK, settings)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func profitabilityHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			models.ProjectAnalysisInput
			Premium  bool `json:"premium_client"`
			Critical bool `json:"critical"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		result, err := svc.AnalyzeProfitability(r.Context(), body.ProjectAnalysisInput,
			ai.RouteOptions{Premium: body.Premium, Critical: body.Critical})
		if err != nil {
			serverError(w, "Failed to analyze profitability", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func alertsHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var input models.ProjectAnalysisInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		result, err := svc.DetectAlerts(r.Context(), input)
		if err != nil {
			serverError(w, "Failed to detect alerts", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func decisionsHandler(svc *service.AutomationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		logs, err := svc.ListDecisionLogs(r.URL.Query().Get("ref"))
		if err != nil {
			serverError(w, "Failed to list decision logs", err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func serverError(w http.ResponseWriter, msg string, err error) {
	log.GetLogger().Errorf("%s: %v", msg, err)
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusInternalServerError)
}

// storageError maps the storage sentinels onto HTTP statuses: a missing
// record is 404, a lost state race is 409.
func storageError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidState):
		http.Error(w, fmt.Sprintf("%s: %v", msg, err), http.StatusConflict)
	default:
		serverError(w, msg, err)
	}
}
