// Package postgres implements store.Store on gorm. The schema, including the
// change-notification triggers, is owned by database migrations.
package postgres

import (
	"context"
	"errors"

	"expense-tracker/models"
	"expense-tracker/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New wraps db. db must be opened with TranslateError enabled so unique
// violations surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrDuplicate
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return store.ErrNotFound
	}
	return err
}

// affected turns a zero-row write into ErrNotFound.
func affected(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// visibleGroupIDs is the subquery of groups userID created or joined.
func (s *Store) visibleGroupIDs(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return s.db.WithContext(ctx).Raw(
		"SELECT group_id FROM group_members WHERE user_id = ? UNION SELECT id FROM groups WHERE created_by = ?",
		userID, userID,
	)
}

// ============================================================
// EXPENSES
// ============================================================

func (s *Store) ListExpenses(ctx context.Context, f store.ExpenseFilter) ([]models.Expense, error) {
	q := s.db.WithContext(ctx).Model(&models.Expense{})
	if f.VisibleTo != uuid.Nil {
		q = q.Where("(user_id = ? OR group_id IN (?))", f.VisibleTo, s.visibleGroupIDs(ctx, f.VisibleTo))
	}
	if f.GroupID != uuid.Nil {
		q = q.Where("group_id = ?", f.GroupID)
	}

	expenses := []models.Expense{}
	if err := q.Order("date DESC").Order("created_at DESC").Find(&expenses).Error; err != nil {
		return nil, translate(err)
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, id uuid.UUID) (*models.Expense, error) {
	var e models.Expense
	if err := s.db.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &e, nil
}

func (s *Store) InsertExpense(ctx context.Context, e *models.Expense) error {
	return translate(s.db.WithContext(ctx).Create(e).Error)
}

func (s *Store) UpdateExpense(ctx context.Context, id uuid.UUID, c models.ExpenseChanges) error {
	cols := c.Columns()
	if len(cols) == 0 {
		_, err := s.GetExpense(ctx, id)
		return err
	}
	return affected(s.db.WithContext(ctx).Model(&models.Expense{}).Where("id = ?", id).Updates(cols))
}

func (s *Store) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Expense{}, "id = ?", id))
}

// ============================================================
// GROUPS
// ============================================================

func (s *Store) ListGroups(ctx context.Context, f store.GroupFilter) ([]models.Group, error) {
	groups := []models.Group{}
	if f.IDs != nil && len(f.IDs) == 0 {
		return groups, nil
	}

	q := s.db.WithContext(ctx).Model(&models.Group{})
	if f.VisibleTo != uuid.Nil {
		q = q.Where("id IN (?)", s.visibleGroupIDs(ctx, f.VisibleTo))
	}
	if f.IDs != nil {
		q = q.Where("id IN ?", f.IDs)
	}
	if err := q.Order("created_at DESC").Find(&groups).Error; err != nil {
		return nil, translate(err)
	}
	return groups, nil
}

func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	var g models.Group
	if err := s.db.WithContext(ctx).First(&g, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &g, nil
}

func (s *Store) InsertGroup(ctx context.Context, g *models.Group) error {
	return translate(s.db.WithContext(ctx).Create(g).Error)
}

func (s *Store) UpdateGroup(ctx context.Context, id uuid.UUID, c models.GroupChanges) error {
	cols := c.Columns()
	if len(cols) == 0 {
		_, err := s.GetGroup(ctx, id)
		return err
	}
	return affected(s.db.WithContext(ctx).Model(&models.Group{}).Where("id = ?", id).Updates(cols))
}

// DeleteGroup relies on the schema's ON DELETE rules to drop memberships and
// invitations and to detach expenses.
func (s *Store) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	return affected(s.db.WithContext(ctx).Delete(&models.Group{}, "id = ?", id))
}

func (s *Store) ListMembers(ctx context.Context, groupIDs []uuid.UUID) ([]models.GroupMember, error) {
	members := []models.GroupMember{}
	if len(groupIDs) == 0 {
		return members, nil
	}
	err := s.db.WithContext(ctx).
		Where("group_id IN ?", groupIDs).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, translate(err)
	}
	return members, nil
}

func (s *Store) InsertMember(ctx context.Context, m *models.GroupMember) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) DeleteMember(ctx context.Context, groupID, userID uuid.UUID) error {
	return affected(s.db.WithContext(ctx).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Delete(&models.GroupMember{}))
}

// ============================================================
// PROFILES
// ============================================================

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) ListProfiles(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error) {
	profiles := []models.Profile{}
	if len(ids) == 0 {
		return profiles, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, translate(err)
	}
	return profiles, nil
}

func (s *Store) InsertProfile(ctx context.Context, p *models.Profile) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, c models.ProfileChanges) error {
	cols := c.Columns()
	if len(cols) == 0 {
		_, err := s.GetProfile(ctx, id)
		return err
	}
	return affected(s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(cols))
}

// ============================================================
// CATEGORIES
// ============================================================

func (s *Store) ListCategories(ctx context.Context, userID uuid.UUID) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, translate(err)
	}
	return categories, nil
}

func (s *Store) InsertCategory(ctx context.Context, c *models.Category) error {
	return translate(s.db.WithContext(ctx).Create(c).Error)
}

// ============================================================
// INVITATIONS
// ============================================================

func (s *Store) ListInvitations(ctx context.Context, f store.InvitationFilter) ([]models.Invitation, error) {
	q := s.db.WithContext(ctx).Model(&models.Invitation{})
	if f.Email != "" {
		q = q.Where("lower(email) = lower(?)", f.Email)
	}
	if f.GroupID != uuid.Nil {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	invitations := []models.Invitation{}
	if err := q.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, translate(err)
	}
	return invitations, nil
}

func (s *Store) GetInvitation(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *Store) InsertInvitations(ctx context.Context, invs []models.Invitation) error {
	if len(invs) == 0 {
		return nil
	}
	for i := range invs {
		if invs[i].Status == "" {
			invs[i].Status = models.InvitationPending
		}
	}
	// A single multi-row INSERT, so the batch lands or fails as a whole.
	return translate(s.db.WithContext(ctx).Create(&invs).Error)
}

func (s *Store) TransitionInvitation(ctx context.Context, id uuid.UUID, status string) error {
	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", id, models.InvitationPending).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}
	if _, err := s.GetInvitation(ctx, id); err != nil {
		return err
	}
	return store.ErrConflict
}

func (s *Store) AcceptInvitation(ctx context.Context, id, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invitation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&inv, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		if inv.Status != models.InvitationPending {
			return store.ErrConflict
		}
		member := models.GroupMember{GroupID: inv.GroupID, UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
			return translate(err)
		}
		return translate(tx.Model(&models.Invitation{}).Where("id = ?", id).
			Update("status", models.InvitationAccepted).Error)
	})
}

// ============================================================
// ACCOUNTS
// ============================================================

func (s *Store) InsertAccount(ctx context.Context, a *models.Account) error {
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	if err := s.db.WithContext(ctx).First(&a, "lower(email) = lower(?)", email).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}
