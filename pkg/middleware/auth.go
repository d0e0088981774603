package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"neuracall-backend/pkg/config"
	"neuracall-backend/pkg/database"
	"neuracall-backend/pkg/models"
	"neuracall-backend/pkg/session"
	"neuracall-backend/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey 用于在context中存储请求级数据的键
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	SessionContextKey ContextKey = "session"
)

// AuthMiddleware JWT认证中间件。验证access token后从行存储解析
// 租户成员关系，把完整的session放进context。
func AuthMiddleware(cfg *config.Config, db database.DatabaseInterface) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			claims, err := parseAccessToken(tokenString, cfg.JWTSecret)
			if err != nil {
				fmt.Printf("❌ Auth middleware: %v\n", err)
				utils.WriteUnauthorizedResponse(w, err.Error())
				return
			}

			user := &models.User{
				ID:    claims.UserID,
				Email: claims.Email,
			}

			sess := &session.Session{
				UserID:  claims.UserID,
				Email:   claims.Email,
				Founder: cfg.IsFounderEmail(claims.Email),
			}
			// 成员关系缺失是合法状态（用户尚未加入租户）
			if membership, err := db.GetMembershipByUser(claims.UserID); err == nil && membership != nil {
				sess.TenantID = membership.TenantID
				sess.Role = membership.Role
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			ctx = context.WithValue(ctx, SessionContextKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseAccessToken 解析并验证access token
func parseAccessToken(tokenString, secret string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type: %s", claims.Type)
	}
	if time.Now().Unix() > claims.Exp {
		return nil, fmt.Errorf("token expired")
	}
	return claims, nil
}

// GetUserFromContext 从context中获取用户信息
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}

// GetSessionFromContext 从context中获取解析后的session
func GetSessionFromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(SessionContextKey).(*session.Session)
	return sess, ok
}

// RequireSession 要求请求已通过认证
func RequireSession(ctx context.Context) (*session.Session, error) {
	sess, ok := GetSessionFromContext(ctx)
	if !ok || sess == nil {
		return nil, fmt.Errorf("not authenticated")
	}
	return sess, nil
}
