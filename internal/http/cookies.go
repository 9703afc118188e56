package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"elearn-api/internal/service"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

// CookieConfig controla cómo se emiten las cookies de sesión.
type CookieConfig struct {
	Domain     string
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// setAuthCookies adjunta ambos tokens como cookies http-only.
func setAuthCookies(c *gin.Context, pair service.TokenPair, cfg CookieConfig) {
	c.SetCookie(accessCookieName, pair.AccessToken, int(cfg.AccessTTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(cfg.RefreshTTL.Seconds()), "/", cfg.Domain, cfg.Secure, true)
}

// clearAuthCookies invalida ambas cookies con expiración inmediata.
func clearAuthCookies(c *gin.Context, cfg CookieConfig) {
	c.SetCookie(accessCookieName, "", -1, "/", cfg.Domain, cfg.Secure, true)
	c.SetCookie(refreshCookieName, "", -1, "/", cfg.Domain, cfg.Secure, true)
}
