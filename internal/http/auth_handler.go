package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"elearn-api/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de autenticación.
type AuthHandler struct {
	logger  *zap.Logger
	auth    *service.AuthService
	cookies CookieConfig
}

func NewAuthHandler(logger *zap.Logger, auth *service.AuthService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		logger:  logger,
		auth:    auth,
		cookies: cookies,
	}
}

// Register maneja POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ticket, err := h.auth.BeginRegistration(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		case errors.Is(err, service.ErrNotificationFailure):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "email delivery unavailable"})
		case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrInvalidCredentials):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		default:
			h.logger.Error("begin registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not register"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "check your email to activate your account",
		"activation_token": ticket,
	})
}

// Activate maneja POST /auth/activate.
func (h *AuthHandler) Activate(c *gin.Context) {
	var req struct {
		ActivationToken string `json:"activation_token" binding:"required"`
		ActivationCode  string `json:"activation_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid activate request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.auth.CompleteRegistration(c.Request.Context(), req.ActivationToken, req.ActivationCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTicketInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "activation ticket invalid or expired"})
		case errors.Is(err, service.ErrCodeMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activation code"})
		case errors.Is(err, service.ErrDuplicateEmail):
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		default:
			h.logger.Error("complete registration failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not activate account"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login maneja POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not login"})
		return
	}

	setAuthCookies(c, pair, h.cookies)
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": pair})
}

// SocialAuth maneja POST /auth/social.
func (h *AuthHandler) SocialAuth(c *gin.Context) {
	var req struct {
		Email  string `json:"email" binding:"required,email"`
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid social auth request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, pair, err := h.auth.SocialAuth(c.Request.Context(), req.Email, req.Name, req.Avatar)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		h.logger.Error("social auth failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not complete social auth"})
		return
	}

	setAuthCookies(c, pair, h.cookies)
	c.JSON(http.StatusOK, gin.H{"user": user, "tokens": pair})
}

// Logout maneja POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if userID, ok := AuthUserID(c); ok {
		h.auth.Logout(c.Request.Context(), userID)
	}
	clearAuthCookies(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"message": "logged out successfully"})
}
