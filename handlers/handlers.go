package handlers

import (
	"net/http"

	"expense-tracker/config"
	"expense-tracker/ledger"
	"expense-tracker/middleware"
	"expense-tracker/session"
	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var sessions *session.Registry

// SetupRoutes mounts every route on r, backed by the given session registry.
func SetupRoutes(r *gin.Engine, registry *session.Registry) {
	sessions = registry

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": config.AppConfig.AppName,
		})
	})

	// ==========================================
	// AUTH ROUTES (public)
	// ==========================================
	auth := r.Group("/auth")
	{
		auth.POST("/register", Register)
		auth.POST("/login", Login)
		auth.POST("/logout", Logout)
	}

	// ==========================================
	// API ROUTES (authenticated)
	// ==========================================
	api := r.Group("/api")
	api.Use(middleware.AuthRequired(registry))
	{
		// User
		api.GET("/users/me", GetProfile)
		api.PUT("/users/me", UpdateProfile)
		api.PUT("/users/me/fcm-token", UpdateFCMToken)

		// Expenses
		api.GET("/expenses", GetExpenses)
		api.POST("/expenses", CreateExpense)
		api.GET("/expenses/:id", GetExpense)
		api.PUT("/expenses/:id", UpdateExpense)
		api.DELETE("/expenses/:id", DeleteExpense)

		// Categories
		api.GET("/categories", GetCategories)
		api.POST("/categories", AddCategory)

		// Groups
		api.POST("/groups", CreateGroup)
		api.GET("/groups", GetGroups)
		api.GET("/groups/:id", GetGroup)
		api.PUT("/groups/:id", UpdateGroup)
		api.DELETE("/groups/:id", DeleteGroup)
		api.GET("/groups/:id/expenses", GetGroupExpenses)
		api.DELETE("/groups/:id/members/:uid", RemoveMember)
		api.POST("/groups/:id/invite", InviteMembers)

		// Invitations
		api.GET("/invitations", GetInvitations)
		api.POST("/invitations/:id/accept", AcceptInvitation)
		api.POST("/invitations/:id/reject", RejectInvitation)

		// Dashboard
		api.GET("/analytics", GetAnalytics)
		api.GET("/notices", GetNotices)
		api.POST("/refresh", Refresh)
	}
}

// currentLedger returns the caller's container once its initial load is
// done. It writes the error response itself and returns false on failure.
func currentLedger(c *gin.Context) (*ledger.Container, bool) {
	client := middleware.Client(c)
	if client == nil {
		utils.Unauthorized(c, "Not signed in")
		return nil, false
	}
	l, err := client.Ledger()
	if err != nil {
		utils.ErrorFrom(c, err)
		return nil, false
	}
	if err := l.WaitReady(c.Request.Context()); err != nil {
		utils.ErrorFrom(c, err)
		return nil, false
	}
	return l, true
}

func paramID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := utils.ParseUUID(c.Param(name))
	if err != nil {
		utils.BadRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/notices
func GetNotices(c *gin.Context) {
	utils.SuccessResponse(c, http.StatusOK, "", middleware.Client(c).Notices())
}

// POST /api/refresh
func Refresh(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	if err := l.Refresh(c.Request.Context()); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Refreshed", nil)
}
