package ledger

import (
	"testing"

	"expense-tracker/models"

	"github.com/google/uuid"
)

func TestResolveName(t *testing.T) {
	id := uuid.MustParse("a1b2c3d4-0000-0000-0000-000000000000")

	tests := []struct {
		name         string
		profile      *models.Profile
		wantName     string
		wantInitials string
		wantSource   NameSource
	}{
		{"full name", &models.Profile{FullName: "Asha Rao", Username: "asha"}, "Asha Rao", "AR", FromFullName},
		{"three words", &models.Profile{FullName: "mary jane watson"}, "mary jane watson", "MJW", FromFullName},
		{"blank full name falls through", &models.Profile{FullName: "   ", Username: "bob"}, "bob", "BO", FromUsername},
		{"single letter username", &models.Profile{Username: "z"}, "z", "Z", FromUsername},
		{"empty profile", &models.Profile{}, "User a1b2c3", "A1", FromPlaceholder},
		{"missing profile", nil, "User a1b2c3", "A1", FromPlaceholder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveName(id, tt.profile)
			if got.Name != tt.wantName || got.Initials != tt.wantInitials || got.Source != tt.wantSource {
				t.Errorf("ResolveName() = %+v, want {%s %s %d}", got, tt.wantName, tt.wantInitials, tt.wantSource)
			}
		})
	}
}

func TestNormalizeEmails(t *testing.T) {
	got := NormalizeEmails([]string{"  A@Example.com ", "a@example.com", "", "  ", "b@example.com"})
	want := []string{"a@example.com", "b@example.com"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeEmails() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeEmails()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
