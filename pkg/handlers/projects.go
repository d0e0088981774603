package handlers

import (
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type ProjectsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewProjectsHandler(cfg *config.Config, db database.DatabaseInterface) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, db: db}
}

type projectRequest struct {
	ClientID        string               `json:"client_id"`
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	Status          models.ProjectStatus `json:"status"`
	HourlyRateCents int64                `json:"hourly_rate_cents"`
}

func validProjectStatus(s models.ProjectStatus) bool {
	switch s {
	case models.ProjectActive, models.ProjectPaused, models.ProjectCompleted:
		return true
	}
	return false
}

// POST /api/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	var req projectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Project name is required")
		return
	}
	if req.Status == "" {
		req.Status = models.ProjectActive
	}
	if !validProjectStatus(req.Status) {
		utils.WriteBadRequestResponse(w, "Invalid status: "+string(req.Status))
		return
	}

	p := &models.Project{
		TenantID:        sess.TenantID,
		ClientID:        req.ClientID,
		Name:            req.Name,
		Description:     req.Description,
		Status:          req.Status,
		HourlyRateCents: req.HourlyRateCents,
	}
	if err := h.db.CreateProject(p); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create project")
		return
	}
	utils.WriteCreatedResponse(w, p)
}

// GET /api/projects
func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	projects, err := h.db.ListProjectsByTenant(sess.TenantID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list projects")
		return
	}
	utils.WriteSuccessResponse(w, projects)
}

// getScopedProject 取项目并校验租户归属
func (h *ProjectsHandler) getScopedProject(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return nil, false
	}

	p, err := h.db.GetProject(chiRoute.URLParam(r, "projectID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return nil, false
	}
	if !canAccessRecord(sess, p.TenantID) {
		utils.WriteForbiddenResponse(w, "Project belongs to another tenant")
		return nil, false
	}
	return p, true
}

// GET /api/projects/{projectID}
func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, ok := h.getScopedProject(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, p)
}

// PUT /api/projects/{projectID}
func (h *ProjectsHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	p, err := h.db.GetProject(chiRoute.URLParam(r, "projectID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	if p.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Project belongs to another tenant")
		return
	}

	var req projectRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Project name is required")
		return
	}
	if req.Status == "" {
		req.Status = p.Status
	}
	if !validProjectStatus(req.Status) {
		utils.WriteBadRequestResponse(w, "Invalid status: "+string(req.Status))
		return
	}

	p.ClientID = req.ClientID
	p.Name = req.Name
	p.Description = req.Description
	p.Status = req.Status
	p.HourlyRateCents = req.HourlyRateCents
	if err := h.db.UpdateProject(p); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update project")
		return
	}
	utils.WriteSuccessResponse(w, p)
}

// DELETE /api/projects/{projectID}
func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	p, err := h.db.GetProject(chiRoute.URLParam(r, "projectID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	if p.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Project belongs to another tenant")
		return
	}

	if err := h.db.DeleteProject(p.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete project")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}

// POST /api/projects/{projectID}/time-entries
func (h *ProjectsHandler) CreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	p, err := h.db.GetProject(chiRoute.URLParam(r, "projectID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	if p.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Project belongs to another tenant")
		return
	}

	var req struct {
		Description string `json:"description"`
		Minutes     int    `json:"minutes"`
		WorkedOn    string `json:"worked_on"` // YYYY-MM-DD
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Minutes <= 0 {
		utils.WriteBadRequestResponse(w, "Minutes must be positive")
		return
	}

	workedOn := time.Now()
	if req.WorkedOn != "" {
		parsed, err := time.Parse("2006-01-02", req.WorkedOn)
		if err != nil {
			utils.WriteBadRequestResponse(w, "worked_on must be YYYY-MM-DD")
			return
		}
		workedOn = parsed
	}

	entry := &models.TimeEntry{
		TenantID:    sess.TenantID,
		ProjectID:   p.ID,
		UserID:      sess.UserID,
		Description: req.Description,
		Minutes:     req.Minutes,
		WorkedOn:    workedOn,
	}
	if err := h.db.CreateTimeEntry(entry); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create time entry")
		return
	}
	utils.WriteCreatedResponse(w, entry)
}

// GET /api/projects/{projectID}/time-entries
func (h *ProjectsHandler) ListTimeEntries(w http.ResponseWriter, r *http.Request) {
	p, ok := h.getScopedProject(w, r)
	if !ok {
		return
	}

	entries, err := h.db.ListTimeEntriesByProject(p.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list time entries")
		return
	}
	utils.WriteSuccessResponse(w, entries)
}

// DELETE /api/projects/{projectID}/time-entries/{entryID}
func (h *ProjectsHandler) DeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	p, err := h.db.GetProject(chiRoute.URLParam(r, "projectID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Project not found")
		return
	}
	if p.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Project belongs to another tenant")
		return
	}

	if err := h.db.DeleteTimeEntry(chiRoute.URLParam(r, "entryID")); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete time entry")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}
