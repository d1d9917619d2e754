package ledger

import (
	"strings"
	"unicode/utf8"

	"expense-tracker/models"

	"github.com/google/uuid"
)

// NameSource tags which profile field produced a display name.
type NameSource int

const (
	FromFullName NameSource = iota
	FromUsername
	FromPlaceholder
)

// nameOrder is tried first to last; the placeholder always succeeds.
var nameOrder = []NameSource{FromFullName, FromUsername, FromPlaceholder}

type DisplayName struct {
	Name     string
	Initials string
	Source   NameSource
}

// ResolveName picks the display name and initials for userID. p may be nil
// when the profile could not be loaded.
func ResolveName(userID uuid.UUID, p *models.Profile) DisplayName {
	for _, src := range nameOrder {
		switch src {
		case FromFullName:
			if p == nil {
				continue
			}
			if full := strings.TrimSpace(p.FullName); full != "" {
				return DisplayName{Name: full, Initials: wordInitials(full), Source: src}
			}
		case FromUsername:
			if p == nil {
				continue
			}
			if u := strings.TrimSpace(p.Username); u != "" {
				return DisplayName{Name: u, Initials: strings.ToUpper(firstRunes(u, 2)), Source: src}
			}
		case FromPlaceholder:
			return placeholderName(userID)
		}
	}
	return placeholderName(userID)
}

func placeholderName(userID uuid.UUID) DisplayName {
	id := userID.String()
	return DisplayName{Name: "User " + id[:6], Initials: strings.ToUpper(id[:2]), Source: FromPlaceholder}
}

func wordInitials(s string) string {
	var b strings.Builder
	for _, word := range strings.Fields(s) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

func firstRunes(s string, n int) string {
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
