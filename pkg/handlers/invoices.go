package handlers

import (
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/permissions"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

// invoiceTransitions 发票状态机
var invoiceTransitions = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoiceDraft:   {models.InvoiceSent, models.InvoiceVoid},
	models.InvoiceSent:    {models.InvoicePaid, models.InvoiceOverdue, models.InvoiceVoid},
	models.InvoiceOverdue: {models.InvoicePaid, models.InvoiceVoid},
	models.InvoicePaid:    {},
	models.InvoiceVoid:    {},
}

func canTransitionInvoice(from, to models.InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type InvoicesHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewInvoicesHandler(cfg *config.Config, db database.DatabaseInterface) *InvoicesHandler {
	return &InvoicesHandler{config: cfg, db: db}
}

// POST /api/invoices
func (h *InvoicesHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}
	if !permissions.CanViewFinancials(sess) {
		utils.WriteForbiddenResponse(w, "Financial access required")
		return
	}

	var req struct {
		ClientID    string `json:"client_id"`
		ProjectID   string `json:"project_id"`
		Number      string `json:"number"`
		AmountCents int64  `json:"amount_cents"`
		Currency    string `json:"currency"`
		DueDate     string `json:"due_date"` // YYYY-MM-DD
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.ClientID == "" || req.Number == "" {
		utils.WriteBadRequestResponse(w, "client_id and number are required")
		return
	}
	if req.AmountCents <= 0 {
		utils.WriteBadRequestResponse(w, "Amount must be positive")
		return
	}

	client, err := h.db.GetClient(req.ClientID)
	if err != nil || client.TenantID != sess.TenantID {
		utils.WriteBadRequestResponse(w, "Unknown client")
		return
	}

	inv := &models.Invoice{
		TenantID:    sess.TenantID,
		ClientID:    req.ClientID,
		ProjectID:   req.ProjectID,
		Number:      req.Number,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Status:      models.InvoiceDraft,
	}
	if req.DueDate != "" {
		due, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			utils.WriteBadRequestResponse(w, "due_date must be YYYY-MM-DD")
			return
		}
		inv.DueDate = &due
	}

	if err := h.db.CreateInvoice(inv); err != nil {
		utils.WriteConflictResponse(w, "Failed to create invoice (number may already exist)")
		return
	}
	utils.WriteCreatedResponse(w, inv)
}

// GET /api/invoices
func (h *InvoicesHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}
	if !permissions.CanViewFinancials(sess) {
		utils.WriteForbiddenResponse(w, "Financial access required")
		return
	}

	invoices, err := h.db.ListInvoicesByTenant(sess.TenantID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list invoices")
		return
	}
	utils.WriteSuccessResponse(w, invoices)
}

// GET /api/invoices/{invoiceID}
func (h *InvoicesHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}
	if !permissions.CanViewFinancials(sess) {
		utils.WriteForbiddenResponse(w, "Financial access required")
		return
	}

	inv, err := h.db.GetInvoice(chiRoute.URLParam(r, "invoiceID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invoice not found")
		return
	}
	if !canAccessRecord(sess, inv.TenantID) {
		utils.WriteForbiddenResponse(w, "Invoice belongs to another tenant")
		return
	}
	utils.WriteSuccessResponse(w, inv)
}

// POST /api/invoices/{invoiceID}/status
func (h *InvoicesHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return
	}
	if !permissions.CanViewFinancials(sess) {
		utils.WriteForbiddenResponse(w, "Financial access required")
		return
	}

	inv, err := h.db.GetInvoice(chiRoute.URLParam(r, "invoiceID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Invoice not found")
		return
	}
	if inv.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Invoice belongs to another tenant")
		return
	}

	var req struct {
		Status models.InvoiceStatus `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Status == "" {
		utils.WriteBadRequestResponse(w, "status is required")
		return
	}

	if !canTransitionInvoice(inv.Status, req.Status) {
		utils.WriteConflictResponse(w, "Cannot transition invoice from "+string(inv.Status)+" to "+string(req.Status))
		return
	}

	inv.Status = req.Status
	if req.Status == models.InvoicePaid {
		now := time.Now()
		inv.PaidAt = &now
	}
	if err := h.db.UpdateInvoice(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update invoice")
		return
	}
	utils.WriteSuccessResponse(w, inv)
}
