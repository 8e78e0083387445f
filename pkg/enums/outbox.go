package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAccount OutboxAggregateType = "account"
)

var aggregateTypes = []OutboxAggregateType{AggregateAccount}

func (a OutboxAggregateType) IsValid() bool { return member(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, value, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLedgerDebited  OutboxEventType = "ledger_debited"
	EventLedgerCredited OutboxEventType = "ledger_credited"
	EventAccountCreated OutboxEventType = "account_created"
)

var eventTypes = []OutboxEventType{EventLedgerDebited, EventLedgerCredited, EventAccountCreated}

func (e OutboxEventType) IsValid() bool { return member(eventTypes, e) }

// IsLedgerMutation reports whether the event carries a ledger entry payload.
func (e OutboxEventType) IsLedgerMutation() bool {
	return e == EventLedgerDebited || e == EventLedgerCredited
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(eventTypes, value, "event type")
}
