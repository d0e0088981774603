package session

import "neuracall-backend/pkg/models"

// Session is the enriched view of a signed-in user: raw identity plus
// the tenant membership context resolved from the row store.
type Session struct {
	UserID     string      `json:"user_id"`
	Email      string      `json:"email"`
	Name       string      `json:"name,omitempty"`
	TenantID   string      `json:"tenant_id,omitempty"`
	TenantName string      `json:"tenant_name,omitempty"`
	Role       models.Role `json:"role,omitempty"`
	Founder    bool        `json:"founder"`
}

// State is what the resolver publishes. Loading starts true and flips
// to false exactly once, on the first resolution outcome (including
// timeout). Session == nil means signed out.
type State struct {
	Loading bool     `json:"loading"`
	Session *Session `json:"session"`
}
