package handlers

import (
	"net/http"

	"expense-tracker/currency"
	"expense-tracker/ledger"
	"expense-tracker/models"
	"expense-tracker/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ExpenseResponse struct {
	models.Expense
	FormattedAmount string `json:"formatted_amount"`
}

func toExpenseResponse(e models.Expense) ExpenseResponse {
	return ExpenseResponse{Expense: e, FormattedAmount: currency.Format(e.Amount, e.Currency)}
}

func toExpenseResponses(expenses []models.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, len(expenses))
	for i, e := range expenses {
		out[i] = toExpenseResponse(e)
	}
	return out
}

// GET /api/expenses
func GetExpenses(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toExpenseResponses(l.Expenses()))
}

// POST /api/expenses
func CreateExpense(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	date, err := utils.ParseDate(req.Date)
	if err != nil {
		utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
		return
	}
	groupID, err := utils.ParseOptionalUUID(req.GroupID)
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	expense, err := l.AddExpense(c.Request.Context(), ledger.NewExpense{
		Title:     req.Title,
		Amount:    req.Amount,
		Date:      date,
		Category:  req.Category,
		Currency:  req.Currency,
		GroupID:   groupID,
		GroupName: req.Group,
	})
	if err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusCreated, "Expense added", toExpenseResponse(expense))
}

func findExpense(l *ledger.Container, id uuid.UUID) (models.Expense, bool) {
	for _, e := range l.Expenses() {
		if e.ID == id {
			return e, true
		}
	}
	return models.Expense{}, false
}

// GET /api/expenses/:id
func GetExpense(c *gin.Context) {
	id, ok := paramID(c, "id", "expense")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	expense, found := findExpense(l, id)
	if !found {
		utils.NotFound(c, "Expense not found")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", toExpenseResponse(expense))
}

// PUT /api/expenses/:id
func UpdateExpense(c *gin.Context) {
	id, ok := paramID(c, "id", "expense")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	patch := ledger.ExpensePatch{
		Title:      req.Title,
		Amount:     req.Amount,
		Category:   req.Category,
		Currency:   req.Currency,
		GroupName:  req.Group,
		ClearGroup: req.ClearGroup,
	}
	if req.Date != nil {
		date, err := utils.ParseDate(*req.Date)
		if err != nil || date.IsZero() {
			utils.BadRequest(c, "Invalid date, expected YYYY-MM-DD")
			return
		}
		patch.Date = &date
	}
	if req.GroupID != nil {
		groupID, err := utils.ParseOptionalUUID(*req.GroupID)
		if err != nil {
			utils.BadRequest(c, "Invalid group ID")
			return
		}
		if groupID == nil {
			patch.ClearGroup = true
		}
		patch.GroupID = groupID
	}

	if err := l.UpdateExpense(c.Request.Context(), id, patch); err != nil {
		utils.ErrorFrom(c, err)
		return
	}

	expense, found := findExpense(l, id)
	if !found {
		utils.NotFound(c, "Expense not found")
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Expense updated", toExpenseResponse(expense))
}

// DELETE /api/expenses/:id
func DeleteExpense(c *gin.Context) {
	id, ok := paramID(c, "id", "expense")
	if !ok {
		return
	}
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	if err := l.DeleteExpense(c.Request.Context(), id); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}

type AnalyticsResponse struct {
	Currency       string                 `json:"currency"`
	Total          decimal.Decimal        `json:"total"`
	TotalFormatted string                 `json:"total_formatted"`
	Trend          []ledger.TrendPoint    `json:"trend"`
	Breakdown      []ledger.CategoryShare `json:"breakdown"`
}

// GET /api/analytics
func GetAnalytics(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	code := l.Identity().DefaultCurrency
	total := l.TotalExpenseAmount()
	utils.SuccessResponse(c, http.StatusOK, "", AnalyticsResponse{
		Currency:       code,
		Total:          total,
		TotalFormatted: currency.Format(total, code),
		Trend:          l.Trend(),
		Breakdown:      l.Breakdown(),
	})
}

// GET /api/categories
func GetCategories(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", l.Categories())
}

// POST /api/categories
func AddCategory(c *gin.Context) {
	l, ok := currentLedger(c)
	if !ok {
		return
	}

	var req models.AddCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := l.AddCategory(c.Request.Context(), req.Name); err != nil {
		utils.ErrorFrom(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Category added", l.Categories())
}
