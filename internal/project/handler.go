package project

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/inamate/inkboard/internal/artifact"
	"github.com/inamate/inkboard/internal/auth"
)

// maxBodySize bounds artifact uploads; markup plus the JSON model.
const maxBodySize = 8 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the artifact and event routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/projects/{projectId}/artifacts", h.ListArtifacts).Methods("GET")
	r.HandleFunc("/projects/{projectId}/artifacts", h.SaveArtifact).Methods("POST")
	r.HandleFunc("/projects/{projectId}/artifacts/{artifactId}", h.GetArtifact).Methods("GET")
	r.HandleFunc("/projects/{projectId}/artifacts/{artifactId}", h.DeleteArtifact).Methods("DELETE")
	r.HandleFunc("/projects/{projectId}/events", h.LogEvent).Methods("POST")
	r.HandleFunc("/projects/{projectId}/events", h.ListEvents).Methods("GET")
}

func (h *Handler) ListArtifacts(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	list, err := h.service.ListArtifacts(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) SaveArtifact(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req artifact.Artifact
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	saved, err := h.service.SaveArtifact(r.Context(), projectID, &req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("artifact saved", "project", projectID, "artifact", saved.ID,
		"user", auth.UserIDFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	a, err := h.service.GetArtifact(r.Context(), vars["projectId"], vars["artifactId"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) DeleteArtifact(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := h.service.DeleteArtifact(r.Context(), vars["projectId"], vars["artifactId"]); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LogEvent(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var ev artifact.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.LogEvent(r.Context(), projectID, ev); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	events, err := h.service.ListEvents(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrInvalidProject):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid project id"})
	case errors.Is(err, artifact.ErrNameRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
	case errors.Is(err, ErrMarkupRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "markup is required"})
	case errors.Is(err, ErrTypeRequired):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type is required"})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
