package handlers

import (
	"net/http"

	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
)

// GET /api/invitations
func GetInvitations(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	if err := l.FetchInvitations(c.Request.Context()); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", l.Invitations())
}

// POST /api/invitations/:id/accept
func AcceptInvitation(c *gin.Context) {
	id, ok := paramID(c, "id", "invitation")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	if err := l.AcceptInvitation(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Invitation accepted", nil)
}

// POST /api/invitations/:id/reject
func RejectInvitation(c *gin.Context) {
	id, ok := paramID(c, "id", "invitation")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	if err := l.RejectInvitation(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Invitation rejected", nil)
}
