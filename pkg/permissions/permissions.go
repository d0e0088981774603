// Package permissions holds the UI/API gating predicates. They are pure
// functions over the resolved session, recomputed on every call, and
// advisory only: the row store remains the authority on tenant scoping.
package permissions

import (
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"
)

func hasElevatedRole(s *session.Session) bool {
	if s == nil {
		return false
	}
	switch s.Role {
	case models.RoleAdmin, models.RoleSupervisor, models.RoleCofounder:
		return true
	}
	return s.Founder
}

// CanViewFinancials gates revenue and invoice figures.
func CanViewFinancials(s *session.Session) bool {
	return hasElevatedRole(s)
}

// CanViewTreasury gates bank/treasury views.
func CanViewTreasury(s *session.Session) bool {
	return hasElevatedRole(s)
}

// CanViewExpenses gates the recurring-expense views.
func CanViewExpenses(s *session.Session) bool {
	return hasElevatedRole(s)
}

// CanManageUsers gates membership and invitation management.
func CanManageUsers(s *session.Session) bool {
	if s == nil {
		return false
	}
	return s.Role == models.RoleAdmin || s.Founder
}

// CanEditSettings gates tenant settings.
func CanEditSettings(s *session.Session) bool {
	if s == nil {
		return false
	}
	return s.Role == models.RoleAdmin || s.Founder
}

// CanViewAll360 gates the cross-tenant 360 view. Founder allow-list
// only; no role grants it.
func CanViewAll360(s *session.Session) bool {
	return s != nil && s.Founder
}
