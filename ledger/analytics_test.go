package ledger

import (
	"testing"
	"time"

	"expense-tracker/models"

	"github.com/shopspring/decimal"
)

func expense(category, amount, code string, date time.Time) models.Expense {
	return models.Expense{
		Category: category,
		Amount:   decimal.RequireFromString(amount),
		Currency: code,
		Date:     date,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCategoryBreakdown(t *testing.T) {
	got := CategoryBreakdown([]models.Expense{
		expense("Food", "10", "USD", day(2024, 1, 1)),
		expense("Rent", "30", "USD", day(2024, 1, 2)),
	})

	if len(got) != 2 {
		t.Fatalf("got %d categories, want 2", len(got))
	}
	if got[0].Name != "Food" || got[0].Percentage != 25 {
		t.Errorf("first = %+v, want Food 25%%", got[0])
	}
	if got[1].Name != "Rent" || got[1].Percentage != 75 {
		t.Errorf("second = %+v, want Rent 75%%", got[1])
	}
}

func TestCategoryBreakdown_RoundsAndKeepsOrder(t *testing.T) {
	got := CategoryBreakdown([]models.Expense{
		expense("Travel", "1", "USD", day(2024, 1, 1)),
		expense("Food", "1", "USD", day(2024, 1, 1)),
		expense("Travel", "1", "USD", day(2024, 1, 1)),
	})
	if got[0].Name != "Travel" || got[0].Percentage != 67 || !got[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("first = %+v, want Travel 2 (67%%)", got[0])
	}
	if got[1].Name != "Food" || got[1].Percentage != 33 {
		t.Errorf("second = %+v, want Food 33%%", got[1])
	}
}

func TestCategoryBreakdown_Empty(t *testing.T) {
	if got := CategoryBreakdown(nil); len(got) != 0 {
		t.Errorf("CategoryBreakdown(nil) = %v, want empty", got)
	}
}

func TestMonthlyTrend_IgnoresYear(t *testing.T) {
	got := MonthlyTrend([]models.Expense{
		expense("Food", "10", "USD", day(2023, time.March, 10)),
		expense("Food", "15", "USD", day(2024, time.March, 5)),
		expense("Food", "4", "USD", day(2024, time.December, 31)),
	})

	if len(got) != 12 {
		t.Fatalf("got %d buckets, want 12", len(got))
	}
	if got[0].Month != "Jan" || got[11].Month != "Dec" {
		t.Errorf("bucket labels = %s..%s, want Jan..Dec", got[0].Month, got[11].Month)
	}
	if !got[2].Amount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("March = %s, want 25", got[2].Amount)
	}
	if !got[11].Amount.Equal(decimal.NewFromInt(4)) {
		t.Errorf("December = %s, want 4", got[11].Amount)
	}
	if !got[0].Amount.IsZero() {
		t.Errorf("January = %s, want 0", got[0].Amount)
	}
}

func TestTotalIn(t *testing.T) {
	expenses := []models.Expense{
		expense("Food", "83.51", "INR", day(2024, 1, 1)),
		expense("Food", "1", "USD", day(2024, 1, 1)),
	}
	if got := TotalIn(expenses, "USD"); !got.Equal(decimal.NewFromInt(2)) {
		t.Errorf("TotalIn(USD) = %s, want 2", got)
	}
	if got := TotalIn(expenses, "INR"); !got.Equal(decimal.RequireFromString("167.02")) {
		t.Errorf("TotalIn(INR) = %s, want 167.02", got)
	}
}
