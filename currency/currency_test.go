package currency

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"USD", "$"},
		{"INR", "₹"},
		{"MXN", "MX$"},
		{"ZZZ", "ZZZ"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := Symbol(tt.code); got != tt.want {
				t.Errorf("Symbol(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	if got := Format(decimal.Zero, "USD"); got != "$0.00" {
		t.Errorf("Format(0, USD) = %q, want %q", got, "$0.00")
	}

	got := Format(decimal.RequireFromString("1234.5"), "INR")
	if !strings.HasPrefix(got, "₹") {
		t.Errorf("Format(1234.5, INR) = %q, expected rupee symbol prefix", got)
	}
	if !strings.HasSuffix(got, ".50") {
		t.Errorf("Format(1234.5, INR) = %q, expected exactly two fraction digits", got)
	}

	if got := Format(decimal.RequireFromString("-5"), "USD"); got != "-$5.00" {
		t.Errorf("Format(-5, USD) = %q, want %q", got, "-$5.00")
	}
}

func TestFormatE_InvalidCode(t *testing.T) {
	got, err := FormatE(decimal.RequireFromString("12"), "U$")
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if got != "12.00" {
		t.Errorf("fallback = %q, want %q", got, "12.00")
	}

	// Format swallows the error and still returns the plain string.
	if got := Format(decimal.RequireFromString("12"), "U$"); got != "12.00" {
		t.Errorf("Format fallback = %q, want %q", got, "12.00")
	}
}

func TestFormatE_LowercaseCode(t *testing.T) {
	got, err := FormatE(decimal.RequireFromString("12"), "usd")
	if err != nil {
		t.Fatal(err)
	}
	if got != "$12.00" {
		t.Errorf("FormatE(12, usd) = %q, want %q", got, "$12.00")
	}
	if got := Format(decimal.RequireFromString("3"), "chf"); got != "CHF 3.00" {
		t.Errorf("Format(3, chf) = %q, want %q", got, "CHF 3.00")
	}
}

func TestValidatePreferred(t *testing.T) {
	for _, code := range Codes() {
		if err := ValidatePreferred(code); err != nil {
			t.Errorf("ValidatePreferred(%q) = %v", code, err)
		}
	}
	for _, code := range []string{"CHF", "R$", ""} {
		if err := ValidatePreferred(code); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("ValidatePreferred(%q) = %v, want ErrInvalidCode", code, err)
		}
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		target string
		want   string
	}{
		{"identity", "10", "USD", "10"},
		{"rupees", "2", "INR", "167.02"},
		{"euro", "100", "EUR", "93"},
		{"unknown falls back to 1", "42", "ZZZ", "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(decimal.RequireFromString(tt.amount), tt.target)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Convert(%s, %s) = %s, want %s", tt.amount, tt.target, got, tt.want)
			}
		})
	}
}

func TestConvertBetween(t *testing.T) {
	same := ConvertBetween(decimal.NewFromInt(7), "INR", "INR")
	if !same.Equal(decimal.NewFromInt(7)) {
		t.Errorf("same-currency conversion changed amount: %s", same)
	}

	usd := ConvertBetween(decimal.RequireFromString("83.51"), "INR", "USD")
	if !usd.Round(4).Equal(decimal.NewFromInt(1)) {
		t.Errorf("83.51 INR -> USD = %s, want 1", usd)
	}

	back := ConvertBetween(decimal.NewFromInt(1), "USD", "INR")
	if !back.Equal(decimal.RequireFromString("83.51")) {
		t.Errorf("1 USD -> INR = %s, want 83.51", back)
	}
}
