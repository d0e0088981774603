package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/middleware"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"

	chiRoute "github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestWithSession builds a JSON request carrying an authenticated
// session and optional chi URL params, the way the router would.
func requestWithSession(t *testing.T, method, target string, body interface{},
	sess *session.Session, params map[string]string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")

	ctx := context.WithValue(req.Context(), middleware.SessionContextKey, sess)
	if len(params) > 0 {
		routeCtx := chiRoute.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chiRoute.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, out))
}

func seedTenantAdmin(t *testing.T, db *database.MemoryDatabase, email string) (*models.User, *models.Tenant, *session.Session) {
	t.Helper()

	user := &models.User{Email: email, Name: "Admin"}
	require.NoError(t, db.CreateUser(user))

	tenant := &models.Tenant{Name: "Acme", OwnerID: user.ID}
	require.NoError(t, db.CreateTenant(tenant))

	sess := &session.Session{
		UserID:     user.ID,
		Email:      user.Email,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Role:       models.RoleAdmin,
	}
	return user, tenant, sess
}

func TestInviteAndAcceptFlow(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	_, tenant, adminSess := seedTenantAdmin(t, db, "admin@acme.test")

	// 管理员发出邀请
	req := requestWithSession(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/invitations",
		map[string]string{"email": "new@acme.test", "role": "member"},
		adminSess, map[string]string{"tenantID": tenant.ID})
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var inv models.TenantInvitation
	decodeData(t, rec, &inv)
	require.NotEmpty(t, inv.Token)
	assert.Equal(t, models.InvitationPending, inv.Status)

	// 被邀请人接受
	invitee := &models.User{Email: "new@acme.test", Name: "New"}
	require.NoError(t, db.CreateUser(invitee))
	inviteeSess := &session.Session{UserID: invitee.ID, Email: invitee.Email}

	req = requestWithSession(t, http.MethodPost, "/api/invitations/accept",
		map[string]string{"token": inv.Token}, inviteeSess, nil)
	rec = httptest.NewRecorder()
	h.AcceptInvitation(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	membership, err := db.GetMembershipByUser(invitee.ID)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, tenant.ID, membership.TenantID)
	assert.Equal(t, models.RoleMember, membership.Role)

	// 重复接受会冲突
	req = requestWithSession(t, http.MethodPost, "/api/invitations/accept",
		map[string]string{"token": inv.Token}, inviteeSess, nil)
	rec = httptest.NewRecorder()
	h.AcceptInvitation(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInviteRequiresAdminRole(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	_, tenant, sess := seedTenantAdmin(t, db, "admin@acme.test")
	sess.Role = models.RoleMember

	req := requestWithSession(t, http.MethodPost, "/api/tenants/"+tenant.ID+"/invitations",
		map[string]string{"email": "x@acme.test"},
		sess, map[string]string{"tenantID": tenant.ID})
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInviteRejectsForeignTenant(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	_, _, adminSess := seedTenantAdmin(t, db, "admin@acme.test")

	req := requestWithSession(t, http.MethodPost, "/api/tenants/other/invitations",
		map[string]string{"email": "x@acme.test"},
		adminSess, map[string]string{"tenantID": "other-tenant"})
	rec := httptest.NewRecorder()
	h.InviteMember(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAcceptExpiredInvitation(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	user, tenant, _ := seedTenantAdmin(t, db, "admin@acme.test")

	inv := &models.TenantInvitation{
		TenantID:  tenant.ID,
		Email:     "late@acme.test",
		InviterID: user.ID,
		Role:      models.RoleMember,
		Token:     "expired-token",
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, db.CreateInvitation(inv))

	lateSess := &session.Session{UserID: "late-user", Email: "late@acme.test"}
	req := requestWithSession(t, http.MethodPost, "/api/invitations/accept",
		map[string]string{"token": inv.Token}, lateSess, nil)
	rec := httptest.NewRecorder()
	h.AcceptInvitation(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)

	stored, err := db.GetInvitationByToken(inv.Token)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, stored.Status)
}

func TestAcceptInvitationWrongEmail(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	user, tenant, _ := seedTenantAdmin(t, db, "admin@acme.test")

	inv := &models.TenantInvitation{
		TenantID:  tenant.ID,
		Email:     "intended@acme.test",
		InviterID: user.ID,
		Role:      models.RoleMember,
		Token:     "tok-1",
		Status:    models.InvitationPending,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.CreateInvitation(inv))

	imposter := &session.Session{UserID: "someone-else", Email: "other@acme.test"}
	req := requestWithSession(t, http.MethodPost, "/api/invitations/accept",
		map[string]string{"token": inv.Token}, imposter, nil)
	rec := httptest.NewRecorder()
	h.AcceptInvitation(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetTenantScoping(t *testing.T) {
	db := database.NewMemoryDatabase()
	h := NewTenantsHandler(&config.Config{}, db)

	_, tenant, sess := seedTenantAdmin(t, db, "admin@acme.test")

	// 本租户可见
	req := requestWithSession(t, http.MethodGet, "/api/tenants/"+tenant.ID, nil,
		sess, map[string]string{"tenantID": tenant.ID})
	rec := httptest.NewRecorder()
	h.GetTenant(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// 其他租户不可见
	req = requestWithSession(t, http.MethodGet, "/api/tenants/other", nil,
		sess, map[string]string{"tenantID": "other-tenant"})
	rec = httptest.NewRecorder()
	h.GetTenant(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 创始人跨租户可见
	founder := &session.Session{UserID: "f", Email: "marc@neuracall.com", TenantID: "hq", Role: models.RoleAdmin, Founder: true}
	req = requestWithSession(t, http.MethodGet, "/api/tenants/"+tenant.ID, nil,
		founder, map[string]string{"tenantID": tenant.ID})
	rec = httptest.NewRecorder()
	h.GetTenant(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
