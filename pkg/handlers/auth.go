package handlers

import (
	"fmt"
	"net/http"

	"neuracall-backend/pkg/cache"
	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/identity"
	"neuracall-backend/pkg/middleware"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"
	"neuracall-backend/pkg/utils"

	"go.uber.org/zap"
)

// AuthHandler handles login, token refresh and logout. Passwords are
// verified upstream by the identity provider; this service only issues
// its own token pair afterwards.
type AuthHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	jwt      *utils.JWTService
	provider identity.Provider
	cache    *cache.SessionCache
	logger   *zap.Logger
}

func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, provider identity.Provider, sessionCache *cache.SessionCache, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		config:   cfg,
		db:       db,
		jwt:      utils.NewJWTService(cfg.JWTSecret),
		provider: provider,
		cache:    sessionCache,
		logger:   logger,
	}
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		utils.WriteBadRequestResponse(w, "Email and password are required")
		return
	}

	raw, err := h.provider.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Warn("login rejected", zap.String("email", req.Email), zap.Error(err))
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	user, err := h.ensureUser(raw)
	if err != nil {
		h.logger.Error("failed to upsert user row", zap.String("email", raw.Email), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return
	}

	sess := session.Enrich(r.Context(), h.db, h.cache, h.logger, h.config.IsFounderEmail, raw)

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteSuccessResponse(w, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		TenantID:     sess.TenantID,
	})
}

// ensureUser mirrors the provider identity into the row store. The
// provider's user id is authoritative.
func (h *AuthHandler) ensureUser(raw *identity.RawSession) (*models.User, error) {
	if user, err := h.db.GetUserByEmail(raw.Email); err == nil {
		return user, nil
	}

	user := &models.User{ID: raw.UserID, Email: raw.Email}
	if err := h.db.CreateUser(user); err != nil {
		// lost a race against a concurrent first login
		if existing, getErr := h.db.GetUserByEmail(raw.Email); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// POST /api/auth/logout (authed)
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), sess.UserID); err != nil {
			h.logger.Debug("session cache invalidate failed", zap.Error(err))
		}
	}
	if err := h.provider.SignOut(r.Context()); err != nil {
		h.logger.Warn("provider sign-out failed", zap.Error(err))
	}

	utils.WriteSuccessResponse(w, map[string]string{"status": "signed_out"})
}

// GET /api/auth/me (authed) — the enriched session for the caller.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess, err := middleware.RequireSession(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	// fill in display name and tenant name; the middleware only carries
	// the identity and membership
	if user, err := h.db.GetUserByID(sess.UserID); err == nil {
		sess.Name = user.Name
	}
	if sess.TenantID != "" {
		if tenant, err := h.db.GetTenant(sess.TenantID); err == nil {
			sess.TenantName = tenant.Name
		}
	}

	utils.WriteSuccessResponse(w, sess)
}
