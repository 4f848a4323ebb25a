package handler

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/bulkmat/order-api/internal/domain"
	"github.com/bulkmat/order-api/internal/service"
)

type ProjectHandler struct {
	projectService *service.ProjectService
	logger         *zap.Logger
}

func NewProjectHandler(projectService *service.ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
		logger:         logger,
	}
}

// List godoc
// @Summary List projects
// @Description Paginated delivery sites. Clients see their own projects, admins see all.
// @Tags Projects
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param search query string false "Search by name or address"
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.ProjectDTO}
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [get]
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.projectService.List(
		r.Context(),
		parseIntQuery(r, "page", 1),
		parseIntQuery(r, "pageSize", 20),
		r.URL.Query().Get("search"),
	)
	if err != nil {
		respondServiceError(w, h.logger, err, "list projects")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Create project
// @Description Registers a delivery site for the calling client
// @Tags Projects
// @Accept json
// @Produce json
// @Param request body domain.CreateProjectRequest true "Project"
// @Success 201 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects [post]
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projectService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create project")
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/projects/%d", project.ID))
	respondJSON(w, http.StatusCreated, project)
}

// GetByID godoc
// @Summary Get project
// @Tags Projects
// @Produce json
// @Param id path int true "Project ID"
// @Success 200 {object} domain.ProjectDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [get]
func (h *ProjectHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}
	project, err := h.projectService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}

// Update godoc
// @Summary Update project
// @Tags Projects
// @Accept json
// @Produce json
// @Param id path int true "Project ID"
// @Param request body domain.UpdateProjectRequest true "Project"
// @Success 200 {object} domain.ProjectDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /projects/{id} [put]
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid project ID")
		return
	}
	var req domain.UpdateProjectRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	project, err := h.projectService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update project")
		return
	}
	respondJSON(w, http.StatusOK, project)
}
