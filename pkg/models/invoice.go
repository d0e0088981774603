package models

import "time"

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
	InvoiceVoid    InvoiceStatus = "void"
)

// Invoice represents a bill issued to a client
type Invoice struct {
	ID          string        `json:"id" db:"id"`
	TenantID    string        `json:"tenant_id" db:"tenant_id"`
	ClientID    string        `json:"client_id" db:"client_id"`
	ProjectID   string        `json:"project_id,omitempty" db:"project_id"`
	Number      string        `json:"number" db:"number"`
	AmountCents int64         `json:"amount_cents" db:"amount_cents"`
	Currency    string        `json:"currency" db:"currency"`
	Status      InvoiceStatus `json:"status" db:"status"`
	DueDate     *time.Time    `json:"due_date,omitempty" db:"due_date"`
	PaidAt      *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" db:"updated_at"`
}
