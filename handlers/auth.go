package handlers

import (
	"net/http"
	"time"

	"expense-tracker/auth"
	"expense-tracker/models"
	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Currency string `json:"currency"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token     string                 `json:"token"`
	ExpiresAt time.Time              `json:"expires_at"`
	User      models.ProfileResponse `json:"user"`
}

// POST /auth/register
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	err := sessions.SignUp(c.Request.Context(), auth.SignUpParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.FullName,
		Currency:    req.Currency,
	})
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Registration successful", nil)
}

// POST /auth/login
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	client, s, err := sessions.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	user := models.ProfileResponse{ID: s.UserID, Email: s.Email}
	if p := client.Auth.Profile(); p != nil {
		user = p.ToResponse(s.Email)
	}

	utils.SuccessResponse(c, http.StatusOK, "Login successful", AuthResponse{
		Token:     s.AccessToken,
		ExpiresAt: s.ExpiresAt,
		User:      user,
	})
}

// POST /auth/logout
func Logout(c *gin.Context) {
	token := utils.BearerToken(c)
	if token == "" {
		utils.Unauthorized(c, "Authorization header required")
		return
	}
	if err := sessions.SignOut(c.Request.Context(), token); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Signed out", nil)
}
