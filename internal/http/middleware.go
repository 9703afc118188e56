package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"elearn-api/internal/domain"
	"elearn-api/internal/service"
)

const authUserIDKey = "auth_user_id"

// SessionAuth protege rutas con cookies de sesión. Un access token válido
// pasa directo; si falta o venció, se rota el par con el refresh token y las
// cookies nuevas se adjuntan antes de seguir al handler.
func SessionAuth(logger *zap.Logger, auth *service.AuthService, cookies CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if access, err := c.Cookie(accessCookieName); err == nil && access != "" {
			if userID, err := auth.Tokens().ParseAccessToken(access); err == nil {
				c.Set(authUserIDKey, userID)
				c.Next()
				return
			}
		}

		refresh, err := c.Cookie(refreshCookieName)
		if err != nil || refresh == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		user, pair, err := auth.Refresh(c.Request.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrSessionExpired):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "please login to access this resource"})
			case errors.Is(err, service.ErrTokenInvalid):
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			default:
				logger.Error("session refresh failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not refresh session"})
			}
			c.Abort()
			return
		}

		setAuthCookies(c, pair, cookies)
		c.Set(authUserIDKey, user.ID)
		c.Next()
	}
}

// RequireRole exige que el usuario autenticado tenga el rol dado.
func RequireRole(logger *zap.Logger, auth *service.AuthService, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := AuthUserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}
		user, err := auth.CurrentUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrUserNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "please login to access this resource"})
			} else {
				logger.Error("role check failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "could not verify role"})
			}
			c.Abort()
			return
		}
		if user.Role != role {
			c.JSON(http.StatusForbidden, gin.H{"error": "not allowed to access this resource"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AuthUserID obtiene el id del usuario autenticado desde el contexto.
func AuthUserID(c *gin.Context) (string, bool) {
	val, ok := c.Get(authUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

// RequireAdmin es un atajo para el gate de administración.
func RequireAdmin(logger *zap.Logger, auth *service.AuthService) gin.HandlerFunc {
	return RequireRole(logger, auth, domain.RoleAdmin)
}
