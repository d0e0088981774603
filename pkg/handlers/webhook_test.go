package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec-test"

func newWebhookFixture(t *testing.T) (*WebhookHandler, *database.MemoryDatabase, *models.Invoice) {
	t.Helper()

	db := database.NewMemoryDatabase()
	cfg := &config.Config{PaymentWebhookSecret: testWebhookSecret}
	h := NewWebhookHandler(cfg, db, zap.NewNop())

	inv := &models.Invoice{
		TenantID:    "tenant-1",
		ClientID:    "client-1",
		Number:      "INV-2026-001",
		AmountCents: 150000,
		Currency:    "EUR",
		Status:      models.InvoiceSent,
	}
	require.NoError(t, db.CreateInvoice(inv))
	return h, db, inv
}

func signedPaymentRequest(t *testing.T, secret string, payload interface{}) *http.Request {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("X-Payment-Signature", hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestPaymentWebhookMarksInvoicePaid(t *testing.T) {
	h, db, inv := newWebhookFixture(t)

	req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": inv.Number,
		"amount_cents":   inv.AmountCents,
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := db.GetInvoiceByNumber(inv.Number)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, stored.Status)
	require.NotNil(t, stored.PaidAt)
}

func TestPaymentWebhookIsIdempotent(t *testing.T) {
	h, db, inv := newWebhookFixture(t)

	for i := 0; i < 2; i++ {
		req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
			"event":          "payment.completed",
			"invoice_number": inv.Number,
		})
		rec := httptest.NewRecorder()
		h.HandlePayment(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	stored, err := db.GetInvoiceByNumber(inv.Number)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, stored.Status)
}

func TestPaymentWebhookRejectsBadSignature(t *testing.T) {
	h, db, inv := newWebhookFixture(t)

	req := signedPaymentRequest(t, "wrong-secret", map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": inv.Number,
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, err := db.GetInvoiceByNumber(inv.Number)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, stored.Status)
}

func TestPaymentWebhookRejectsMissingSignature(t *testing.T) {
	h, _, inv := newWebhookFixture(t)

	body, _ := json.Marshal(map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": inv.Number,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentWebhookAmountMismatchConflicts(t *testing.T) {
	h, db, inv := newWebhookFixture(t)

	req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": inv.Number,
		"amount_cents":   inv.AmountCents - 1,
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := db.GetInvoiceByNumber(inv.Number)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, stored.Status)
}

func TestPaymentWebhookVoidInvoiceConflicts(t *testing.T) {
	h, db, inv := newWebhookFixture(t)
	inv.Status = models.InvoiceVoid
	require.NoError(t, db.UpdateInvoice(inv))

	req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": inv.Number,
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentWebhookUnknownInvoice(t *testing.T) {
	h, _, _ := newWebhookFixture(t)

	req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
		"event":          "payment.completed",
		"invoice_number": "INV-NOPE",
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentWebhookIgnoresUnknownEvents(t *testing.T) {
	h, db, inv := newWebhookFixture(t)

	req := signedPaymentRequest(t, testWebhookSecret, map[string]interface{}{
		"event":          "payment.refunded",
		"invoice_number": inv.Number,
	})
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	stored, err := db.GetInvoiceByNumber(inv.Number)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, stored.Status)
}

func TestPaymentWebhookUnconfiguredSecret(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewWebhookHandler(&config.Config{}, db, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewReader(nil))
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
