package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	middleware "github.com/inkwellhq/papyrus/internal/api/middlewares"
	"github.com/inkwellhq/papyrus/internal/core"
	"github.com/inkwellhq/papyrus/internal/models"
)

type ProjectHandler struct {
	dbclient core.DbClient
}

func NewProjectHandler(dbclient core.DbClient) *ProjectHandler {
	return &ProjectHandler{dbclient: dbclient}
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}

	now := time.Now()
	project := &models.Project{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.dbclient.CreateProject(r.Context(), project); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(project)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return
	}

	projects, err := h.dbclient.ListProjectsByOwner(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(projects)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(project)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r, h.dbclient)
	if !ok {
		return
	}

	if err := h.dbclient.DeleteProject(r.Context(), project.ID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireProject loads the {project_id} route param and verifies the
// requester owns it. On failure it writes the response and returns false.
func requireProject(w http.ResponseWriter, r *http.Request, dbclient core.DbClient) (*models.Project, bool) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		http.Error(w, "user_id not found in context", http.StatusUnauthorized)
		return nil, false
	}

	projectID := chi.URLParam(r, "project_id")
	project, err := dbclient.GetProjectByID(r.Context(), projectID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if project == nil {
		http.Error(w, "project not found", http.StatusNotFound)
		return nil, false
	}
	if project.OwnerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, false
	}
	return project, true
}
