package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// KindStat summarizes the debits booked under one kind.
type KindStat struct {
	Kind   enums.LedgerKind `json:"kind"`
	Count  int64            `json:"count"`
	Tokens int64            `json:"tokens"`
}

// Repository exposes account persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new account.
func (r *Repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// FindByID returns nil, nil when the account does not exist.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// FindByEmail returns nil, nil when no account uses email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdatePlan overwrites subscription_plan and subscription_end. It never
// touches the balance.
func (r *Repository) UpdatePlan(ctx context.Context, id uuid.UUID, plan enums.PlanName, end *time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"subscription_plan": plan,
			"subscription_end":  end,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DebitStats groups the account's debits by kind.
func (r *Repository) DebitStats(ctx context.Context, id uuid.UUID) ([]KindStat, error) {
	var stats []KindStat
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("kind, COUNT(*) AS count, CAST(SUM(-amount) AS BIGINT) AS tokens").
		Where("account_id = ? AND amount < 0", id).
		Group("kind").
		Order("kind ASC").
		Scan(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
