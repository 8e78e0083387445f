package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// Account holds a user's cached token balance. Balance is a projection of the
// ledger entries; Version increments once per applied entry.
type Account struct {
	ID               uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Email            string         `gorm:"column:email;type:text;not null;uniqueIndex:ux_accounts_email"`
	Username         string         `gorm:"column:username;type:text;not null"`
	Balance          int64          `gorm:"column:balance;not null;check:chk_accounts_balance_non_negative,balance >= 0"`
	InitialBalance   int64          `gorm:"column:initial_balance;not null"`
	SubscriptionPlan enums.PlanName `gorm:"column:subscription_plan;type:plan_name_enum;not null;default:'free'"`
	SubscriptionEnd  *time.Time     `gorm:"column:subscription_end"`
	Version          int64          `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
