package handlers

import (
	"net/http"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/metrics"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/pipeline"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OpportunitiesHandler struct {
	config  *config.Config
	db      database.DatabaseInterface
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewOpportunitiesHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger, m *metrics.Metrics) *OpportunitiesHandler {
	return &OpportunitiesHandler{config: cfg, db: db, logger: logger, metrics: m}
}

type opportunityRequest struct {
	ClientID   string       `json:"client_id"`
	Title      string       `json:"title"`
	Stage      models.Stage `json:"stage"`
	ValueCents int64        `json:"value_cents"`
	Currency   string       `json:"currency"`
	Notes      string       `json:"notes"`
}

// POST /api/opportunities
func (h *OpportunitiesHandler) CreateOpportunity(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	var req opportunityRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Title == "" {
		utils.WriteBadRequestResponse(w, "Opportunity title is required")
		return
	}
	if req.Stage == "" {
		req.Stage = models.StageNew
	}
	if !models.ValidStage(req.Stage) {
		utils.WriteBadRequestResponse(w, "Invalid stage: "+string(req.Stage))
		return
	}
	if req.ValueCents < 0 {
		utils.WriteBadRequestResponse(w, "Value must be non-negative")
		return
	}

	o := &models.Opportunity{
		TenantID:   sess.TenantID,
		ClientID:   req.ClientID,
		OwnerID:    sess.UserID,
		Title:      req.Title,
		Stage:      req.Stage,
		ValueCents: req.ValueCents,
		Currency:   req.Currency,
		Notes:      req.Notes,
	}
	if err := h.db.CreateOpportunity(o); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create opportunity")
		return
	}
	utils.WriteCreatedResponse(w, o)
}

// GET /api/opportunities
func (h *OpportunitiesHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	var (
		items []models.Opportunity
		err   error
	)
	if sess.Role == models.RoleCofounder || sess.Founder {
		items, err = h.db.ListAllOpportunities()
	} else {
		items, err = h.db.ListOpportunitiesByTenant(sess.TenantID)
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list opportunities")
		return
	}
	utils.WriteSuccessResponse(w, items)
}

// GET /api/opportunities/board — stage buckets plus per-stage totals.
func (h *OpportunitiesHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	engine := pipeline.NewEngine(h.db, h.logger, h.metrics)
	if err := engine.Load(r.Context(), sess); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load board")
		return
	}
	utils.WriteSuccessResponse(w, engine.Snapshot())
}

// POST /api/opportunities/{opportunityID}/move
func (h *OpportunitiesHandler) MoveOpportunity(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	id := chiRoute.URLParam(r, "opportunityID")
	var req struct {
		From  models.Stage `json:"from"`
		To    models.Stage `json:"to"`
		Index int          `json:"index"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	engine := pipeline.NewEngine(h.db, h.logger, h.metrics)
	if err := engine.Load(r.Context(), sess); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load board")
		return
	}

	if err := engine.Move(r.Context(), id, req.From, req.To, req.Index); err != nil {
		// the engine already reconciled its board with the store; hand
		// that truth back alongside the error
		utils.WriteJSONResponse(w, http.StatusConflict, map[string]interface{}{
			"error": err.Error(),
			"board": engine.Snapshot(),
		})
		return
	}

	utils.WriteSuccessResponse(w, engine.Snapshot())
}

// GET /api/opportunities/{opportunityID}
func (h *OpportunitiesHandler) GetOpportunity(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	o, err := h.db.GetOpportunity(chiRoute.URLParam(r, "opportunityID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Opportunity not found")
		return
	}
	if !canAccessRecord(sess, o.TenantID) {
		utils.WriteForbiddenResponse(w, "Opportunity belongs to another tenant")
		return
	}
	utils.WriteSuccessResponse(w, o)
}

// PUT /api/opportunities/{opportunityID}
func (h *OpportunitiesHandler) UpdateOpportunity(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	o, err := h.db.GetOpportunity(chiRoute.URLParam(r, "opportunityID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Opportunity not found")
		return
	}
	if o.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Opportunity belongs to another tenant")
		return
	}

	var req opportunityRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Title == "" {
		utils.WriteBadRequestResponse(w, "Opportunity title is required")
		return
	}
	// stage changes go through the move endpoint so the board semantics
	// (optimistic move + rollback) hold
	if req.Stage != "" && req.Stage != o.Stage {
		utils.WriteBadRequestResponse(w, "Use the move endpoint to change stage")
		return
	}
	if req.ValueCents < 0 {
		utils.WriteBadRequestResponse(w, "Value must be non-negative")
		return
	}

	o.ClientID = req.ClientID
	o.Title = req.Title
	o.ValueCents = req.ValueCents
	o.Currency = req.Currency
	o.Notes = req.Notes
	if err := h.db.UpdateOpportunity(o); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update opportunity")
		return
	}
	utils.WriteSuccessResponse(w, o)
}

// DELETE /api/opportunities/{opportunityID}
func (h *OpportunitiesHandler) DeleteOpportunity(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	o, err := h.db.GetOpportunity(chiRoute.URLParam(r, "opportunityID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Opportunity not found")
		return
	}
	if o.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Opportunity belongs to another tenant")
		return
	}

	if err := h.db.DeleteOpportunity(o.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete opportunity")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}
