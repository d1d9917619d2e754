package ledger

import (
	"time"

	"expense-tracker/currency"
	"expense-tracker/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TrendPoint struct {
	Month  string          `json:"month"`
	Amount decimal.Decimal `json:"amount"`
}

type CategoryShare struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage int64           `json:"percentage"`
}

var hundred = decimal.NewFromInt(100)

// MonthlyTrend sums amounts into twelve buckets, January first, by month of
// year only. Amounts in different currencies are added as-is.
func MonthlyTrend(expenses []models.Expense) []TrendPoint {
	points := make([]TrendPoint, 12)
	for i := range points {
		points[i] = TrendPoint{Month: time.Month(i + 1).String()[:3], Amount: decimal.Zero}
	}
	for _, e := range expenses {
		m := e.Date.Month() - 1
		points[m].Amount = points[m].Amount.Add(e.Amount)
	}
	return points
}

// CategoryBreakdown groups amounts by category in order of first appearance.
// Percentages are rounded to whole numbers; a zero total yields zero.
func CategoryBreakdown(expenses []models.Expense) []CategoryShare {
	var shares []CategoryShare
	index := map[string]int{}
	total := decimal.Zero

	for _, e := range expenses {
		total = total.Add(e.Amount)
		i, ok := index[e.Category]
		if !ok {
			i = len(shares)
			index[e.Category] = i
			shares = append(shares, CategoryShare{Name: e.Category, Amount: decimal.Zero})
		}
		shares[i].Amount = shares[i].Amount.Add(e.Amount)
	}

	if total.IsZero() {
		return shares
	}
	for i := range shares {
		shares[i].Percentage = shares[i].Amount.Div(total).Mul(hundred).Round(0).IntPart()
	}
	return shares
}

// TotalIn sums every expense after converting it into target.
func TotalIn(expenses []models.Expense, target string) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(currency.ConvertBetween(e.Amount, e.Currency, target))
	}
	return total.Round(2)
}

// groupTotal sums the raw amounts of expenses in groupID and reports the
// distinct currencies involved, in first-seen order.
func groupTotal(expenses []models.Expense, groupID uuid.UUID) (decimal.Decimal, []string) {
	total := decimal.Zero
	var codes []string
	seen := map[string]bool{}
	for _, e := range expenses {
		if !e.InGroup(groupID) {
			continue
		}
		total = total.Add(e.Amount)
		if !seen[e.Currency] {
			seen[e.Currency] = true
			codes = append(codes, e.Currency)
		}
	}
	return total, codes
}
