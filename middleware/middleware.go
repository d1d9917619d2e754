package middleware

import (
	"log/slog"
	"time"

	"expense-tracker/session"
	"expense-tracker/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const clientKey = "session_client"

// CORSMiddleware allows every origin; the API authenticates with bearer
// tokens, not cookies.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// AuthRequired resolves the bearer token to a session client and stores it,
// along with the caller's user id, on the context.
func AuthRequired(sessions *session.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := utils.BearerToken(c)
		if token == "" {
			utils.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		client, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			utils.ErrorFrom(c, err)
			c.Abort()
			return
		}
		s := client.Auth.Session()
		if s == nil {
			utils.Unauthorized(c, "Session ended")
			c.Abort()
			return
		}

		c.Set("user_id", s.UserID)
		c.Set("token", token)
		c.Set(clientKey, client)
		c.Next()
	}
}

// Client returns the session client AuthRequired stored.
func Client(c *gin.Context) *session.Client {
	v, ok := c.Get(clientKey)
	if !ok {
		return nil
	}
	return v.(*session.Client)
}

// RequestLogger logs one line per request through slog.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
