package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/utils"

	"go.uber.org/zap"
)

// WebhookHandler receives payment-provider callbacks. The endpoint is
// unauthenticated; the HMAC signature over the raw body is the only
// trust anchor.
type WebhookHandler struct {
	config *config.Config
	db     database.DatabaseInterface
	logger *zap.Logger
}

func NewWebhookHandler(cfg *config.Config, db database.DatabaseInterface, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{config: cfg, db: db, logger: logger}
}

type paymentEvent struct {
	Event         string `json:"event"`
	InvoiceNumber string `json:"invoice_number"`
	AmountCents   int64  `json:"amount_cents"`
	PaidAt        string `json:"paid_at"` // RFC3339, optional
}

// POST /api/webhooks/payment
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	if h.config.PaymentWebhookSecret == "" {
		h.logger.Error("payment webhook called but PAYMENT_WEBHOOK_SECRET is not configured")
		utils.WriteErrorResponse(w, http.StatusServiceUnavailable, "Webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read body")
		return
	}
	defer r.Body.Close()

	if !h.verifySignature(body, r.Header.Get("X-Payment-Signature")) {
		h.logger.Warn("payment webhook signature mismatch", zap.String("ip", r.RemoteAddr))
		utils.WriteUnauthorizedResponse(w, "Invalid signature")
		return
	}

	var event paymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid payload")
		return
	}

	switch event.Event {
	case "payment.completed":
		h.markInvoicePaid(w, event)
	default:
		// 未知事件确认收到即可，支付服务商才不会无限重试
		h.logger.Info("ignoring payment event", zap.String("event", event.Event))
		utils.WriteSuccessResponse(w, map[string]string{"status": "ignored"})
	}
}

func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.config.PaymentWebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *WebhookHandler) markInvoicePaid(w http.ResponseWriter, event paymentEvent) {
	if event.InvoiceNumber == "" {
		utils.WriteBadRequestResponse(w, "invoice_number is required")
		return
	}

	inv, err := h.db.GetInvoiceByNumber(event.InvoiceNumber)
	if err != nil {
		h.logger.Warn("payment for unknown invoice", zap.String("number", event.InvoiceNumber))
		utils.WriteNotFoundResponse(w, "Invoice not found")
		return
	}

	// idempotent: repeat deliveries of the same payment are acknowledged
	if inv.Status == models.InvoicePaid {
		utils.WriteSuccessResponse(w, inv)
		return
	}
	if inv.Status == models.InvoiceVoid {
		utils.WriteConflictResponse(w, "Invoice is void")
		return
	}
	if event.AmountCents != 0 && event.AmountCents != inv.AmountCents {
		h.logger.Warn("payment amount mismatch",
			zap.String("number", event.InvoiceNumber),
			zap.Int64("expected", inv.AmountCents),
			zap.Int64("received", event.AmountCents))
		utils.WriteConflictResponse(w, "Payment amount does not match invoice")
		return
	}

	paidAt := time.Now()
	if event.PaidAt != "" {
		if parsed, err := time.Parse(time.RFC3339, event.PaidAt); err == nil {
			paidAt = parsed
		}
	}

	inv.Status = models.InvoicePaid
	inv.PaidAt = &paidAt
	if err := h.db.UpdateInvoice(inv); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update invoice")
		return
	}

	h.logger.Info("invoice marked paid",
		zap.String("number", inv.Number), zap.String("tenant_id", inv.TenantID))
	utils.WriteSuccessResponse(w, inv)
}
