package handlers

import (
	"net/http"

	"neuracall-backend/pkg/middleware"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"
	"neuracall-backend/pkg/utils"
)

// requireTenantSession 要求请求已认证且归属某个租户
func requireTenantSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	if sess.TenantID == "" {
		utils.WriteForbiddenResponse(w, "No tenant membership")
		return nil, false
	}
	return sess, true
}

// canAccessRecord reports whether the session may touch a record owned
// by recordTenantID. Cofounders and founders see across tenants; writes
// still go through the record's own tenant.
func canAccessRecord(sess *session.Session, recordTenantID string) bool {
	if sess == nil {
		return false
	}
	if recordTenantID == sess.TenantID {
		return true
	}
	return sess.Role == models.RoleCofounder || sess.Founder
}
