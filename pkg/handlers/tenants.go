package handlers

import (
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/middleware"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/permissions"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// invitationTTL 邀请有效期
const invitationTTL = 14 * 24 * time.Hour

type TenantsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewTenantsHandler(cfg *config.Config, db database.DatabaseInterface) *TenantsHandler {
	return &TenantsHandler{config: cfg, db: db}
}

// POST /api/tenants
func (h *TenantsHandler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Tenant name is required")
		return
	}

	tenant := &models.Tenant{
		Name:        req.Name,
		OwnerID:     sess.UserID,
		Description: req.Description,
	}
	if err := h.db.CreateTenant(tenant); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create tenant")
		return
	}

	utils.WriteCreatedResponse(w, tenant)
}

// GET /api/tenants
func (h *TenantsHandler) ListMyTenants(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	tenants, err := h.db.ListUserTenants(sess.UserID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list tenants")
		return
	}
	utils.WriteSuccessResponse(w, tenants)
}

// GET /api/tenants/{tenantID}
func (h *TenantsHandler) GetTenant(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	tenantID := chiRoute.URLParam(r, "tenantID")
	if tenantID != sess.TenantID && !permissions.CanViewAll360(sess) {
		utils.WriteForbiddenResponse(w, "Not a member of this tenant")
		return
	}

	tenant, err := h.db.GetTenant(tenantID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Tenant not found")
		return
	}
	utils.WriteSuccessResponse(w, tenant)
}

// GET /api/tenants/{tenantID}/members
func (h *TenantsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	tenantID := chiRoute.URLParam(r, "tenantID")
	if tenantID != sess.TenantID && !permissions.CanViewAll360(sess) {
		utils.WriteForbiddenResponse(w, "Not a member of this tenant")
		return
	}

	members, err := h.db.ListTenantMembers(tenantID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list members")
		return
	}
	utils.WriteSuccessResponse(w, members)
}

// POST /api/tenants/{tenantID}/invitations
func (h *TenantsHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	tenantID := chiRoute.URLParam(r, "tenantID")
	if tenantID != sess.TenantID || !permissions.CanManageUsers(sess) {
		utils.WriteForbiddenResponse(w, "Admin privileges required")
		return
	}

	var req struct {
		Email string      `json:"email"`
		Role  models.Role `json:"role"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Email == "" {
		utils.WriteBadRequestResponse(w, "Email is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !models.ValidRole(req.Role) {
		utils.WriteBadRequestResponse(w, "Invalid role: "+string(req.Role))
		return
	}

	token, err := utils.GenerateURLToken(24)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate invitation token")
		return
	}

	inv := &models.TenantInvitation{
		TenantID:  tenantID,
		Email:     req.Email,
		InviterID: sess.UserID,
		Role:      req.Role,
		Token:     token,
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().Add(invitationTTL),
	}
	if err := h.db.CreateInvitation(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create invitation")
		return
	}

	utils.WriteCreatedResponse(w, inv)
}

// GET /api/invitations
func (h *TenantsHandler) ListMyInvitations(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	invitations, err := h.db.ListInvitationsByEmail(sess.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list invitations")
		return
	}
	utils.WriteSuccessResponse(w, invitations)
}

// POST /api/invitations/accept
func (h *TenantsHandler) AcceptInvitation(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Token == "" {
		utils.WriteBadRequestResponse(w, "Invitation token is required")
		return
	}

	inv, err := h.db.GetInvitationByToken(req.Token)
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invitation not found")
		return
	}
	if inv.Status != models.InvitationPending {
		utils.WriteConflictResponse(w, "Invitation already "+string(inv.Status))
		return
	}
	if time.Now().After(inv.ExpiresAt) {
		inv.Status = models.InvitationExpired
		_ = h.db.UpdateInvitation(inv)
		utils.WriteConflictResponse(w, "Invitation expired")
		return
	}
	if inv.Email != sess.Email {
		utils.WriteForbiddenResponse(w, "Invitation was issued to a different email")
		return
	}

	membership := &models.TenantMembership{
		TenantID: inv.TenantID,
		UserID:   sess.UserID,
		Role:     inv.Role,
	}
	if err := h.db.AddTenantMember(membership); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to add membership")
		return
	}

	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = &sess.UserID
	if err := h.db.UpdateInvitation(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update invitation")
		return
	}

	utils.WriteSuccessResponse(w, membership)
}
