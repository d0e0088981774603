package handlers

import (
	"net/http"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type ClientsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewClientsHandler(cfg *config.Config, db database.DatabaseInterface) *ClientsHandler {
	return &ClientsHandler{config: cfg, db: db}
}

type clientRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
}

// POST /api/clients
func (h *ClientsHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	var req clientRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Client name is required")
		return
	}

	client := &models.Client{
		TenantID:    sess.TenantID,
		Name:        req.Name,
		ContactName: req.ContactName,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		Notes:       req.Notes,
	}
	if err := h.db.CreateClient(client); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create client")
		return
	}
	utils.WriteCreatedResponse(w, client)
}

// GET /api/clients
func (h *ClientsHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	clients, err := h.db.ListClientsByTenant(sess.TenantID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list clients")
		return
	}
	utils.WriteSuccessResponse(w, clients)
}

// GET /api/clients/{clientID}
func (h *ClientsHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	client, err := h.db.GetClient(chiRoute.URLParam(r, "clientID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Client not found")
		return
	}
	if !canAccessRecord(sess, client.TenantID) {
		utils.WriteForbiddenResponse(w, "Client belongs to another tenant")
		return
	}
	utils.WriteSuccessResponse(w, client)
}

// PUT /api/clients/{clientID}
func (h *ClientsHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	client, err := h.db.GetClient(chiRoute.URLParam(r, "clientID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Client not found")
		return
	}
	if client.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Client belongs to another tenant")
		return
	}

	var req clientRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Client name is required")
		return
	}

	client.Name = req.Name
	client.ContactName = req.ContactName
	client.Email = req.Email
	client.Phone = req.Phone
	client.Address = req.Address
	client.Notes = req.Notes
	if err := h.db.UpdateClient(client); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update client")
		return
	}
	utils.WriteSuccessResponse(w, client)
}

// DELETE /api/clients/{clientID}
func (h *ClientsHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}

	client, err := h.db.GetClient(chiRoute.URLParam(r, "clientID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Client not found")
		return
	}
	if client.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Client belongs to another tenant")
		return
	}

	if err := h.db.DeleteClient(client.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete client")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}
