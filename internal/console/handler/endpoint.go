package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/pulsemon/internal/console/service"
	"github.com/xela07ax/pulsemon/internal/domain"
)

type EndpointHandler struct {
	service *service.MonitorService
}

func NewEndpointHandler(s *service.MonitorService) *EndpointHandler {
	return &EndpointHandler{service: s}
}

// List возвращает все зарегистрированные эндпоинты (включая выключенные)
func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	endpoints, err := h.service.ListEndpoints(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch endpoints", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(endpoints)
}

// Get возвращает эндпоинт по его ID.
// GET /v1/endpoints/{id}
func (h *EndpointHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Endpoint ID is required", http.StatusBadRequest)
		return
	}

	endpoint, err := h.service.GetEndpoint(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to retrieve endpoint: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if endpoint == nil {
		http.Error(w, "Endpoint not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(endpoint); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
	}
}

// Create регистрирует новый эндпоинт под мониторинг
func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	var e domain.Endpoint
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.CreateEndpoint(r.Context(), &e); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(&e)
}

// Update редактирует настройки эндпоинта (URL, интервалы, is_active)
func (h *EndpointHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var e domain.Endpoint
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	e.ID = id

	if err := h.service.UpdateEndpoint(r.Context(), &e); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete снимает эндпоинт с мониторинга
func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteEndpoint(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth отдает кэшированную сводку здоровья.
// Промах кэша возвращает статус unknown, а не 404.
func (h *EndpointHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	summary, err := h.service.GetHealth(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch health summary", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// GetScore отдает последний снимок рейтинга надежности
func (h *EndpointHandler) GetScore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	score, err := h.service.GetScore(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch reliability score", http.StatusInternalServerError)
		return
	}
	if score == nil {
		http.Error(w, "Score not calculated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(score)
}

// ListIncidents возвращает историю инцидентов эндпоинта
func (h *EndpointHandler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	incidents, err := h.service.ListEndpointIncidents(r.Context(), id)
	if err != nil {
		http.Error(w, "Failed to fetch incidents", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(incidents)
}
