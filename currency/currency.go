// Package currency maps ISO currency codes to display symbols and static
// USD-pegged rates, and formats amounts for display.
//
// The rate table is a snapshot for display purposes only. It must never be used
// to settle money between users.
package currency

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Base is the currency every rate in the table is expressed against.
const Base = "USD"

var ErrInvalidCode = errors.New("invalid currency code")

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"CAD": "C$",
	"AUD": "A$",
	"CNY": "¥",
	"INR": "₹",
	"BRL": "R$",
	"MXN": "MX$",
}

var rates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.93"),
	"GBP": decimal.RequireFromString("0.79"),
	"JPY": decimal.RequireFromString("151.23"),
	"CAD": decimal.RequireFromString("1.38"),
	"AUD": decimal.RequireFromString("1.52"),
	"CNY": decimal.RequireFromString("7.23"),
	"INR": decimal.RequireFromString("83.51"),
	"BRL": decimal.RequireFromString("5.12"),
	"MXN": decimal.RequireFromString("16.74"),
}

// Amounts are rendered with en-IN digit grouping.
var printer = message.NewPrinter(language.MustParse("en-IN"))

// Symbol returns the display symbol for code, or code itself when unknown.
func Symbol(code string) string {
	if s, ok := symbols[code]; ok {
		return s
	}
	return code
}

// Known reports whether code has both a symbol and a rate.
func Known(code string) bool {
	_, ok := rates[code]
	return ok
}

// Codes returns the supported currency codes.
func Codes() []string {
	return []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CNY", "INR", "BRL", "MXN"}
}

// Rate returns the units of code per one USD. Unknown codes return 1.
func Rate(code string) decimal.Decimal {
	if r, ok := rates[code]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// Convert multiplies an amount expressed in USD by the rate of target.
// Unknown targets fall back to rate 1, which leaves the amount unchanged.
func Convert(amountInBase decimal.Decimal, target string) decimal.Decimal {
	return amountInBase.Mul(Rate(target))
}

// ConvertBetween converts amount from one currency to another through the base
// currency. Unknown codes on either side are treated as rate 1.
func ConvertBetween(amount decimal.Decimal, from, to string) decimal.Decimal {
	if from == to {
		return amount
	}
	inBase := amount.Div(Rate(from))
	return Convert(inBase, to)
}

// Validate checks that code is a well-formed, recognised ISO 4217 code.
func Validate(code string) error {
	if _, err := currency.ParseISO(code); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidCode, code)
	}
	return nil
}

// ValidatePreferred checks that code can be a user's default currency, which
// totals are converted into. Only codes with a rate qualify.
func ValidatePreferred(code string) error {
	if err := Validate(code); err != nil {
		return err
	}
	if !Known(code) {
		return fmt.Errorf("%w %q: choose one of %s", ErrInvalidCode, code, strings.Join(Codes(), ", "))
	}
	return nil
}

// Format renders amount with the symbol for code and exactly two fraction
// digits. An unparseable code is not fatal: it is logged and the plain numeric
// string is returned instead.
func Format(amount decimal.Decimal, code string) string {
	s, err := FormatE(amount, code)
	if err != nil {
		slog.Warn("Currency formatting failed", "code", code, "error", err)
	}
	return s
}

// FormatE is Format with the formatting error exposed. The returned string is
// always usable.
func FormatE(amount decimal.Decimal, code string) (string, error) {
	code = strings.ToUpper(code)
	rounded := amount.Round(2)
	if err := Validate(code); err != nil {
		return rounded.StringFixed(2), err
	}

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}

	digits := printer.Sprintf("%.2f", rounded.InexactFloat64())

	prefix, ok := symbols[code]
	if !ok {
		prefix = code + " "
	}
	return sign + prefix + digits, nil
}
