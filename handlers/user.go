package handlers

import (
	"net/http"

	"expense-tracker/middleware"
	"expense-tracker/models"
	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/users/me
func GetProfile(c *gin.Context) {
	client := middleware.Client(c)
	user := client.Auth.User()

	p := client.Auth.Profile()
	if p == nil || user == nil {
		utils.NotFound(c, "Profile not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", p.ToResponse(user.Email))
}

// PUT /api/users/me
func UpdateProfile(c *gin.Context) {
	client := middleware.Client(c)

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	changes := models.ProfileChanges{
		Username:        req.Username,
		FullName:        req.FullName,
		AvatarURL:       req.AvatarURL,
		DefaultCurrency: req.DefaultCurrency,
	}
	if err := client.Auth.UpdateProfile(c.Request.Context(), changes); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	var data interface{}
	if p := client.Auth.Profile(); p != nil {
		data = p.ToResponse(client.Auth.User().Email)
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile updated", data)
}

// PUT /api/users/me/fcm-token
func UpdateFCMToken(c *gin.Context) {
	client := middleware.Client(c)

	var req models.UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := client.Auth.UpdateProfile(c.Request.Context(), models.ProfileChanges{FCMToken: &req.Token}); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}
