package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/constructlink/constructlink/internal/model"
	"github.com/constructlink/constructlink/internal/store"
)

// ProjectsHandler handles project endpoints.
type ProjectsHandler struct {
	DB *sql.DB
}

type projectRequest struct {
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// List handles GET /api/projects.
func (h *ProjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := store.ListProjects(r.Context(), h.DB)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}
	if projects == nil {
		projects = []model.Project{}
	}
	jsonResponse(w, http.StatusOK, projects)
}

// Create handles POST /api/projects.
func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name is required")
		return
	}

	project, err := store.CreateProject(r.Context(), h.DB, req.Name, req.Location)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	slog.Info("project created", "project", project.Name, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusCreated, project)
}

// Get handles GET /api/projects/{id}.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	project, err := store.GetProject(r.Context(), h.DB, id)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if project == nil || project.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

// Update handles PUT /api/projects/{id}.
func (h *ProjectsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := store.UpdateProject(r.Context(), h.DB, id, req.Name, req.Location); err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to update project")
		return
	}

	project, err := store.GetProject(r.Context(), h.DB, id)
	if err != nil || project == nil {
		jsonError(w, http.StatusNotFound, "project not found")
		return
	}
	jsonResponse(w, http.StatusOK, project)
}

// Delete handles DELETE /api/projects/{id}.
func (h *ProjectsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := store.DeleteProject(r.Context(), h.DB, id); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "project deleted"})
}
