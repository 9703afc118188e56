package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"elearn-api/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	auth *service.AuthService,
	cookies CookieConfig,
	authH *AuthHandler,
	userH *UserHandler,
	adminH *AdminHandler,
	courseH *CourseHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	session := SessionAuth(logger, auth, cookies)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/activate", authH.Activate)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/social", authH.SocialAuth)
	authGroup.POST("/logout", session, authH.Logout)

	users := r.Group("/users", session)
	users.GET("/me", userH.Me)
	users.PUT("/me", userH.UpdateProfile)
	users.PUT("/me/password", userH.UpdatePassword)
	users.PUT("/me/avatar", userH.UpdateAvatar)

	admin := r.Group("/admin", session, RequireAdmin(logger, auth))
	admin.GET("/users", adminH.ListUsers)
	admin.PUT("/users/role", adminH.SetRole)
	admin.POST("/users/batch", adminH.GetUsersByIDs)
	admin.DELETE("/users/:id", adminH.DeleteUser)

	r.GET("/courses/:id", courseH.GetCourse)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
