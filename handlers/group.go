package handlers

import (
	"net/http"

	"expense-tracker/currency"
	"expense-tracker/ledger"
	"expense-tracker/models"
	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type GroupResponse struct {
	ledger.Group
	BudgetFormatted string `json:"budget_formatted"`
	TotalFormatted  string `json:"total_formatted"`
}

// Group amounts are displayed in the caller's default currency unless every
// expense in the group uses the same one.
func toGroupResponse(g ledger.Group, defaultCurrency string) GroupResponse {
	code := defaultCurrency
	if len(g.Currencies) == 1 {
		code = g.Currencies[0]
	}
	return GroupResponse{
		Group:           g,
		BudgetFormatted: currency.Format(g.Budget, defaultCurrency),
		TotalFormatted:  currency.Format(g.TotalExpenses, code),
	}
}

func findGroup(l *ledger.Container, id uuid.UUID) (ledger.Group, bool) {
	for _, g := range l.Groups() {
		if g.ID == id {
			return g, true
		}
	}
	return ledger.Group{}, false
}

// POST /api/groups
func CreateGroup(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	id, err := l.CreateGroup(c.Request.Context(), ledger.NewGroup{
		Name:         req.Name,
		Budget:       req.Budget,
		MemberEmails: req.Members,
	})
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	group, found := findGroup(l, id)
	if !found {
		group = ledger.Group{ID: id, Name: req.Name, Budget: req.Budget}
	}
	utils.SuccessResponse(c, http.StatusCreated, "Group created", toGroupResponse(group, l.Identity().DefaultCurrency))
}

// GET /api/groups
func GetGroups(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	code := l.Identity().DefaultCurrency
	groups := l.Groups()
	responses := make([]GroupResponse, len(groups))
	for i, g := range groups {
		responses[i] = toGroupResponse(g, code)
	}
	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/groups/:id
func GetGroup(c *gin.Context) {
	id, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	group, err := l.GroupByID(c.Request.Context(), id)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toGroupResponse(group, l.Identity().DefaultCurrency))
}

// PUT /api/groups/:id
func UpdateGroup(c *gin.Context) {
	id, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := l.UpdateGroup(c.Request.Context(), id, ledger.GroupPatch{Name: req.Name, Budget: req.Budget}); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	var data interface{}
	if group, found := findGroup(l, id); found {
		data = toGroupResponse(group, l.Identity().DefaultCurrency)
	}
	utils.SuccessResponse(c, http.StatusOK, "Group updated", data)
}

// DELETE /api/groups/:id
func DeleteGroup(c *gin.Context) {
	id, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	if err := l.DeleteGroup(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Group deleted", nil)
}

// GET /api/groups/:id/expenses
func GetGroupExpenses(c *gin.Context) {
	id, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	if _, err := l.GroupByID(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	var expenses []models.Expense
	for _, e := range l.Expenses() {
		if e.InGroup(id) {
			expenses = append(expenses, e)
		}
	}
	utils.SuccessResponse(c, http.StatusOK, "", toExpenseResponses(expenses))
}

// DELETE /api/groups/:id/members/:uid
func RemoveMember(c *gin.Context) {
	groupID, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	userID, ok := paramID(c, "uid", "user")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	if err := l.RemoveMember(c.Request.Context(), groupID, userID); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Member removed", nil)
}

// POST /api/groups/:id/invite
func InviteMembers(c *gin.Context) {
	groupID, ok := paramID(c, "id", "group")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.InviteMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	n, err := l.InviteMembers(c.Request.Context(), groupID, req.Emails)
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Invitations sent", gin.H{"invited": n})
}
