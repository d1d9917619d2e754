// Package store is the table-oriented backend the state containers read from
// and write to. Visibility rules (which rows a user may see) live behind these
// interfaces, the way row-level policies live in the database.
package store

import (
	"context"
	"errors"

	"expense-tracker/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict is returned when a conditional update matched no row.
	ErrConflict = errors.New("record changed concurrently")
)

// ExpenseFilter selects expenses. Zero fields do not filter.
type ExpenseFilter struct {
	// VisibleTo keeps expenses owned by the user or assigned to a group the
	// user belongs to or created.
	VisibleTo uuid.UUID
	GroupID   uuid.UUID
}

// GroupFilter selects groups. Zero fields do not filter.
type GroupFilter struct {
	// VisibleTo keeps groups the user created or is a member of.
	VisibleTo uuid.UUID
	IDs       []uuid.UUID
}

// InvitationFilter selects invitations. Zero fields do not filter.
type InvitationFilter struct {
	Email   string
	GroupID uuid.UUID
	Status  string
}

// Expenses are returned newest date first, ties broken by creation time.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, f ExpenseFilter) ([]models.Expense, error)
	GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error)
	InsertExpense(ctx context.Context, e *models.Expense) error
	UpdateExpense(ctx context.Context, id uuid.UUID, c models.ExpenseChanges) error
	DeleteExpense(ctx context.Context, id uuid.UUID) error
}

// Groups are returned newest first. Deleting a group removes its memberships
// and invitations and detaches its expenses.
type GroupStore interface {
	ListGroups(ctx context.Context, f GroupFilter) ([]models.Group, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	InsertGroup(ctx context.Context, g *models.Group) error
	UpdateGroup(ctx context.Context, id uuid.UUID, c models.GroupChanges) error
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	ListMembers(ctx context.Context, groupIDs []uuid.UUID) ([]models.GroupMember, error)
	InsertMember(ctx context.Context, m *models.GroupMember) error
	DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	ListProfiles(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error)
	InsertProfile(ctx context.Context, p *models.Profile) error
	UpdateProfile(ctx context.Context, id uuid.UUID, c models.ProfileChanges) error
}

// Categories are returned by name ascending.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
}

type InvitationStore interface {
	ListInvitations(ctx context.Context, f InvitationFilter) ([]models.Invitation, error)
	GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	// InsertInvitations inserts the batch atomically.
	InsertInvitations(ctx context.Context, invs []models.Invitation) error
	// TransitionInvitation moves a pending invitation to status. It returns
	// ErrConflict when the invitation is no longer pending.
	TransitionInvitation(ctx context.Context, id uuid.UUID, status string) error
	// AcceptInvitation accepts a pending invitation and adds userID to its
	// group in one step; on error neither change is made. An existing
	// membership is kept. It returns ErrConflict when the invitation is no
	// longer pending.
	AcceptInvitation(ctx context.Context, id, userID uuid.UUID) error
}

type AccountStore interface {
	InsertAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
}

// Store is the full backend.
type Store interface {
	ExpenseStore
	GroupStore
	ProfileStore
	CategoryStore
	InvitationStore
	AccountStore
	Close() error
}
