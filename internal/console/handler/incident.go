package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/pulsemon/internal/console/service"
	"github.com/xela07ax/pulsemon/internal/domain"
	"github.com/xela07ax/pulsemon/internal/incident"
)

type IncidentHandler struct {
	service *service.MonitorService
}

func NewIncidentHandler(s *service.MonitorService) *IncidentHandler {
	return &IncidentHandler{service: s}
}

// List возвращает инциденты, опционально отфильтрованные по статусу.
// GET /v1/incidents?status=active
func (h *IncidentHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	incidents, err := h.service.ListIncidents(r.Context(), status)
	if err != nil {
		http.Error(w, "Failed to fetch incidents", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(incidents)
}

// incidentDetails — инцидент вместе с его хронологией для карточки в UI
type incidentDetails struct {
	*domain.Incident
	Timeline []*domain.TimelineEntry `json:"timeline"`
}

// Get возвращает инцидент с полной хронологией.
// GET /v1/incidents/{id}
func (h *IncidentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Incident ID is required", http.StatusBadRequest)
		return
	}

	inc, timeline, err := h.service.GetIncident(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to retrieve incident: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if inc == nil {
		http.Error(w, "Incident not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(incidentDetails{Incident: inc, Timeline: timeline})
}

type updateStatusRequest struct {
	Status  domain.IncidentStatus `json:"status"`
	Message string                `json:"message"`
}

// UpdateStatus выполняет переход машины состояний инцидента.
// POST /v1/incidents/{id}/status
func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateIncidentStatus(r.Context(), id, req.Status, req.Message); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateSeverityRequest struct {
	Severity domain.IncidentSeverity `json:"severity"`
	Reason   string                  `json:"reason"`
}

// UpdateSeverity меняет серьезность открытого инцидента.
// POST /v1/incidents/{id}/severity
func (h *IncidentHandler) UpdateSeverity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateSeverityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Severity {
	case domain.SeverityMinor, domain.SeverityMajor, domain.SeverityCritical:
	default:
		http.Error(w, "Unknown severity", http.StatusBadRequest)
		return
	}

	if err := h.service.UpdateIncidentSeverity(r.Context(), id, req.Severity, req.Reason); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type mergeRequest struct {
	SecondaryIDs []string `json:"secondary_ids"`
}

// Merge сливает дубликаты в один первичный инцидент.
// POST /v1/incidents/{id}/merge
func (h *IncidentHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.SecondaryIDs) == 0 {
		http.Error(w, "secondary_ids are required", http.StatusBadRequest)
		return
	}

	if err := h.service.MergeIncidents(r.Context(), id, req.SecondaryIDs); err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeLifecycleError маппит ошибки машины состояний на HTTP-коды:
// неизвестный инцидент — 404, запрещенный переход — 409, остальное — 500.
func writeLifecycleError(w http.ResponseWriter, err error) {
	var transitionErr *incident.InvalidTransitionError
	switch {
	case errors.Is(err, incident.ErrNotFoundOrResolved):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &transitionErr):
		http.Error(w, transitionErr.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
