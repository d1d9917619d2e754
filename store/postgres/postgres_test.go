package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"expense-tracker/models"
	"expense-tracker/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB connects to TEST_DATABASE_URL, which must point at a migrated
// scratch database.
func openTestDB(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	return New(db)
}

func seedAccount(t *testing.T, s *Store) uuid.UUID {
	t.Helper()
	a := models.Account{Email: uuid.NewString() + "@example.com", PasswordHash: "x"}
	if err := s.InsertAccount(context.Background(), &a); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	if err := s.InsertProfile(context.Background(), &models.Profile{ID: a.ID, Username: "u"}); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return a.ID
}

func TestStore_GroupLifecycle(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	owner := seedAccount(t, s)
	other := seedAccount(t, s)

	g := models.Group{Name: "Trip", Budget: decimal.NewFromInt(500), CreatedBy: owner}
	if err := s.InsertGroup(ctx, &g); err != nil {
		t.Fatal(err)
	}
	defer s.DeleteGroup(ctx, g.ID)

	if err := s.InsertMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: owner}); err != nil {
		t.Fatal(err)
	}
	if err := s.InsertMember(ctx, &models.GroupMember{GroupID: g.ID, UserID: owner}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("duplicate member err = %v, want ErrDuplicate", err)
	}

	gid := g.ID
	e := models.Expense{UserID: owner, GroupID: &gid, Title: "Fuel", Amount: decimal.NewFromInt(40), Currency: "INR", Date: time.Now()}
	if err := s.InsertExpense(ctx, &e); err != nil {
		t.Fatal(err)
	}

	visible, err := s.ListExpenses(ctx, store.ExpenseFilter{VisibleTo: other})
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range visible {
		if v.ID == e.ID {
			t.Fatal("non-member can see group expense")
		}
	}

	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetExpense(ctx, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.GroupID != nil {
		t.Error("expense still attached after group delete")
	}
	s.DeleteExpense(ctx, e.ID)
}

func TestStore_CategoryDuplicate(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	user := seedAccount(t, s)

	if err := s.InsertCategory(ctx, &models.Category{UserID: user, Name: "Gym"}); err != nil {
		t.Fatal(err)
	}
	err := s.InsertCategory(ctx, &models.Category{UserID: user, Name: "Gym"})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
}

func TestStore_AcceptInvitation(t *testing.T) {
	s := openTestDB(t)
	ctx := context.Background()
	owner := seedAccount(t, s)
	bob := seedAccount(t, s)

	g := models.Group{Name: "House", CreatedBy: owner}
	if err := s.InsertGroup(ctx, &g); err != nil {
		t.Fatal(err)
	}
	defer s.DeleteGroup(ctx, g.ID)

	invs := []models.Invitation{{GroupID: g.ID, InvitedBy: owner, Email: uuid.NewString() + "@example.com"}}
	if err := s.InsertInvitations(ctx, invs); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptInvitation(ctx, invs[0].ID, bob); err != nil {
		t.Fatal(err)
	}
	if err := s.AcceptInvitation(ctx, invs[0].ID, bob); !errors.Is(err, store.ErrConflict) {
		t.Errorf("second accept err = %v, want ErrConflict", err)
	}

	members, err := s.ListMembers(ctx, []uuid.UUID{g.ID})
	if err != nil {
		t.Fatal(err)
	}
	joined := false
	for _, m := range members {
		if m.UserID == bob {
			joined = true
		}
	}
	if !joined {
		t.Error("accept did not add the membership")
	}
}
