package models

import "time"

// CalendarEvent is a scheduled entry on the tenant calendar
type CalendarEvent struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Title     string    `json:"title" db:"title"`
	Location  string    `json:"location,omitempty" db:"location"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	AllDay    bool      `json:"all_day" db:"all_day"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time `json:"ends_at" db:"ends_at"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
