package migrate

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mianhamzaathar/AIFORGE/pkg/db/models"
	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// Models lists every persisted model in dependency order.
func Models() []any {
	return []any{
		&models.Account{},
		&models.LedgerEntry{},
		&models.Plan{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// DefaultPlans mirrors the rows seeded by the plans migration.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{Name: enums.PlanFree, Price: decimal.RequireFromString("0.00"), Tokens: 1000, Features: pq.StringArray{"1,000 starter tokens", "All AI tools"}, Active: true},
		{Name: enums.PlanBasic, Price: decimal.RequireFromString("9.99"), Tokens: 5000, Features: pq.StringArray{"5,000 tokens", "All AI tools", "Email support"}, Active: true},
		{Name: enums.PlanPro, Price: decimal.RequireFromString("29.99"), Tokens: 20000, Features: pq.StringArray{"20,000 tokens", "All AI tools", "Priority support"}, Active: true},
		{Name: enums.PlanEnterprise, Price: decimal.RequireFromString("99.99"), Tokens: 100000, Features: pq.StringArray{"100,000 tokens", "All AI tools", "Dedicated support"}, Active: true},
	}
}

// AutoMigrateModels builds the schema from the GORM models and seeds the plan
// catalog. Used for sqlite dev databases and tests.
func AutoMigrateModels(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrate models: %w", err)
	}
	plans := DefaultPlans()
	if err := conn.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&plans).Error; err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	return nil
}
