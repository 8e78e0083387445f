package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// LedgerEntry is an immutable record of one balance change. Sequence is the
// per-account creation order and equals the account version after the entry
// was applied.
type LedgerEntry struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	AccountID    uuid.UUID        `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_account_sequence,priority:1"`
	Sequence     int64            `gorm:"column:sequence;not null;uniqueIndex:ux_ledger_entries_account_sequence,priority:2"`
	Amount       int64            `gorm:"column:amount;not null;check:chk_ledger_entries_amount_nonzero,amount <> 0"`
	Kind         enums.LedgerKind `gorm:"column:kind;type:ledger_kind_enum;not null"`
	BalanceAfter int64            `gorm:"column:balance_after;not null"`
	Reference    *string          `gorm:"column:reference;type:text;uniqueIndex:ux_ledger_entries_reference"`
	CreatedAt    time.Time        `gorm:"column:created_at;not null"`
}

func (e *LedgerEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// IsDebit reports whether the entry decreased the balance.
func (e LedgerEntry) IsDebit() bool {
	return e.Amount < 0
}
