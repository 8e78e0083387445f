package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// Plan is a purchasable subscription tier bundling a token grant.
type Plan struct {
	Name          enums.PlanName  `gorm:"column:name;type:plan_name_enum;primaryKey"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Tokens        int64           `gorm:"column:tokens;not null"`
	Features      pq.StringArray  `gorm:"column:features;type:text"`
	StripePriceID *string         `gorm:"column:stripe_price_id"`
	Active        bool            `gorm:"column:active;not null;default:true"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsFree reports whether the plan can be assigned without a payment.
func (p Plan) IsFree() bool {
	return p.Price.IsZero()
}
