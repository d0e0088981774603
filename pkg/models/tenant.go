package models

import "time"

// Tenant represents an isolated customer organization; all business data
// is partitioned by tenant id.
type Tenant struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	Description string    `json:"description,omitempty" db:"description"`
	Avatar      string    `json:"avatar,omitempty" db:"avatar"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleMember     Role = "member"
	RoleCofounder  Role = "cofounder"
)

// ValidRole reports whether r is one of the known membership roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleMember, RoleCofounder:
		return true
	}
	return false
}

// TenantMembership relates users to tenants with a role
type TenantMembership struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      Role      `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// TenantInvitation is an invite to join a tenant
type TenantInvitation struct {
	ID         string           `json:"id" db:"id"`
	TenantID   string           `json:"tenant_id" db:"tenant_id"`
	Email      string           `json:"email" db:"email"`
	InviterID  string           `json:"inviter_id" db:"inviter_id"`
	Role       Role             `json:"role" db:"role"`
	Token      string           `json:"token" db:"token"`
	Status     InvitationStatus `json:"status" db:"status"`
	ExpiresAt  time.Time        `json:"expires_at" db:"expires_at"`
	AcceptedBy *string          `json:"accepted_by,omitempty" db:"accepted_by"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}
