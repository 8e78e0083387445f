package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
)

// LedgerEntryEvent describes one applied ledger entry. It is the payload of
// both ledger_debited and ledger_credited; Amount carries the sign.
type LedgerEntryEvent struct {
	EntryID      uuid.UUID        `json:"entry_id"`
	AccountID    uuid.UUID        `json:"account_id"`
	Sequence     int64            `json:"sequence"`
	Amount       int64            `json:"amount"`
	Kind         enums.LedgerKind `json:"kind"`
	BalanceAfter int64            `json:"balance_after"`
	Reference    *string          `json:"reference,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AccountCreatedEvent is emitted once per registration.
type AccountCreatedEvent struct {
	AccountID      uuid.UUID      `json:"account_id"`
	InitialBalance int64          `json:"initial_balance"`
	Plan           enums.PlanName `json:"plan"`
}
