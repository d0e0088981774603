package models

import "time"

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectPaused    ProjectStatus = "paused"
	ProjectCompleted ProjectStatus = "completed"
)

// Project tracks delivery work for a client under a tenant
type Project struct {
	ID              string        `json:"id" db:"id"`
	TenantID        string        `json:"tenant_id" db:"tenant_id"`
	ClientID        string        `json:"client_id,omitempty" db:"client_id"`
	Name            string        `json:"name" db:"name"`
	Description     string        `json:"description,omitempty" db:"description"`
	Status          ProjectStatus `json:"status" db:"status"`
	HourlyRateCents int64         `json:"hourly_rate_cents,omitempty" db:"hourly_rate_cents"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// TimeEntry is a single tracked block of work on a project
type TimeEntry struct {
	ID          string    `json:"id" db:"id"`
	TenantID    string    `json:"tenant_id" db:"tenant_id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Minutes     int       `json:"minutes" db:"minutes"`
	WorkedOn    time.Time `json:"worked_on" db:"worked_on"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
