package handlers

import (
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/permissions"
	"neuracall-backend/pkg/session"
	"neuracall-backend/pkg/utils"

	chiRoute "github.com/go-chi/chi/v5"
)

type ExpensesHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

func NewExpensesHandler(cfg *config.Config, db database.DatabaseInterface) *ExpensesHandler {
	return &ExpensesHandler{config: cfg, db: db}
}

type expenseRequest struct {
	Name          string                     `json:"name"`
	Vendor        string                     `json:"vendor"`
	AmountCents   int64                      `json:"amount_cents"`
	Currency      string                     `json:"currency"`
	Interval      models.BillingInterval     `json:"interval"`
	NextRenewalAt string                     `json:"next_renewal_at"` // YYYY-MM-DD
	Allocations   []models.ExpenseAllocation `json:"allocations"`
}

func validInterval(i models.BillingInterval) bool {
	return i == models.IntervalMonthly || i == models.IntervalYearly
}

func (h *ExpensesHandler) requireExpenseAccess(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := requireTenantSession(w, r)
	if !ok {
		return nil, false
	}
	if !permissions.CanViewExpenses(sess) {
		utils.WriteForbiddenResponse(w, "Expense access required")
		return nil, false
	}
	return sess, true
}

// POST /api/expenses
func (h *ExpensesHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireExpenseAccess(w, r)
	if !ok {
		return
	}

	var req expenseRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Expense name is required")
		return
	}
	if req.AmountCents < 0 {
		utils.WriteBadRequestResponse(w, "Amount must be non-negative")
		return
	}
	if req.Interval == "" {
		req.Interval = models.IntervalMonthly
	}
	if !validInterval(req.Interval) {
		utils.WriteBadRequestResponse(w, "Invalid interval: "+string(req.Interval))
		return
	}

	expense := &models.RecurringExpense{
		TenantID:    sess.TenantID,
		Name:        req.Name,
		Vendor:      req.Vendor,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Interval:    req.Interval,
	}
	if req.NextRenewalAt != "" {
		renewal, err := time.Parse("2006-01-02", req.NextRenewalAt)
		if err != nil {
			utils.WriteBadRequestResponse(w, "next_renewal_at must be YYYY-MM-DD")
			return
		}
		expense.NextRenewalAt = &renewal
	}

	// 分摊比例先归一化再落库
	if len(req.Allocations) > 0 {
		reconciled, err := models.ReconcileAllocations(req.AmountCents, req.Allocations)
		if err != nil {
			utils.WriteBadRequestResponse(w, err.Error())
			return
		}
		expense.Allocations = reconciled
	}

	if err := h.db.CreateExpense(expense); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create expense")
		return
	}
	if len(expense.Allocations) > 0 {
		if err := h.db.ReplaceExpenseAllocations(expense.ID, expense.Allocations); err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to store allocations")
			return
		}
	}
	utils.WriteCreatedResponse(w, expense)
}

// GET /api/expenses
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireExpenseAccess(w, r)
	if !ok {
		return
	}

	expenses, err := h.db.ListExpensesByTenant(sess.TenantID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list expenses")
		return
	}
	for i := range expenses {
		if allocs, err := h.db.ListExpenseAllocations(expenses[i].ID); err == nil {
			expenses[i].Allocations = allocs
		}
	}
	utils.WriteSuccessResponse(w, expenses)
}

// GET /api/expenses/{expenseID}
func (h *ExpensesHandler) GetExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireExpenseAccess(w, r)
	if !ok {
		return
	}

	expense, err := h.db.GetExpense(chiRoute.URLParam(r, "expenseID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Expense not found")
		return
	}
	if expense.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Expense belongs to another tenant")
		return
	}
	if allocs, err := h.db.ListExpenseAllocations(expense.ID); err == nil {
		expense.Allocations = allocs
	}
	utils.WriteSuccessResponse(w, expense)
}

// PUT /api/expenses/{expenseID}
func (h *ExpensesHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireExpenseAccess(w, r)
	if !ok {
		return
	}

	expense, err := h.db.GetExpense(chiRoute.URLParam(r, "expenseID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Expense not found")
		return
	}
	if expense.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Expense belongs to another tenant")
		return
	}

	var req expenseRequest
	if err := utils.ParseJSONBody(r, &req); err != nil || req.Name == "" {
		utils.WriteBadRequestResponse(w, "Expense name is required")
		return
	}
	if req.AmountCents < 0 {
		utils.WriteBadRequestResponse(w, "Amount must be non-negative")
		return
	}
	if req.Interval == "" {
		req.Interval = expense.Interval
	}
	if !validInterval(req.Interval) {
		utils.WriteBadRequestResponse(w, "Invalid interval: "+string(req.Interval))
		return
	}

	expense.Name = req.Name
	expense.Vendor = req.Vendor
	expense.AmountCents = req.AmountCents
	expense.Currency = req.Currency
	expense.Interval = req.Interval
	if req.NextRenewalAt != "" {
		renewal, err := time.Parse("2006-01-02", req.NextRenewalAt)
		if err != nil {
			utils.WriteBadRequestResponse(w, "next_renewal_at must be YYYY-MM-DD")
			return
		}
		expense.NextRenewalAt = &renewal
	}

	// 金额变化时分摊额度必须重新推导
	var allocs []models.ExpenseAllocation
	if len(req.Allocations) > 0 {
		allocs = req.Allocations
	} else {
		allocs, _ = h.db.ListExpenseAllocations(expense.ID)
	}
	if len(allocs) > 0 {
		reconciled, err := models.ReconcileAllocations(expense.AmountCents, allocs)
		if err != nil {
			utils.WriteBadRequestResponse(w, err.Error())
			return
		}
		expense.Allocations = reconciled
	}

	if err := h.db.UpdateExpense(expense); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update expense")
		return
	}
	if len(expense.Allocations) > 0 {
		if err := h.db.ReplaceExpenseAllocations(expense.ID, expense.Allocations); err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to store allocations")
			return
		}
	}
	utils.WriteSuccessResponse(w, expense)
}

// DELETE /api/expenses/{expenseID}
func (h *ExpensesHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireExpenseAccess(w, r)
	if !ok {
		return
	}

	expense, err := h.db.GetExpense(chiRoute.URLParam(r, "expenseID"))
	if err != nil {
		utils.WriteNotFoundResponse(w, "Expense not found")
		return
	}
	if expense.TenantID != sess.TenantID {
		utils.WriteForbiddenResponse(w, "Expense belongs to another tenant")
		return
	}

	if err := h.db.DeleteExpense(expense.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete expense")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"status": "deleted"})
}
