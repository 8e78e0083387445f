// Package registry knows every event the ledger emits: its aggregate, the
// topic it is published to and how to decode each payload version.
package registry

import (
	"encoding/json"

	"github.com/mianhamzaathar/AIFORGE/pkg/enums"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox/payloads"
)

type decodeFunc func(json.RawMessage) (any, error)

// Descriptor describes one version of one event type.
type Descriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Version       int
	Topic         string
	decode        decodeFunc
}

// catalog lists the current payload version of each event. A new payload
// version gets its own entry; old entries stay until no stored row uses them.
func catalog(ledgerTopic string) []Descriptor {
	return []Descriptor{
		{
			EventType:     enums.EventLedgerDebited,
			AggregateType: enums.AggregateAccount,
			Version:       1,
			Topic:         ledgerTopic,
			decode:        decodeInto[payloads.LedgerEntryEvent],
		},
		{
			EventType:     enums.EventLedgerCredited,
			AggregateType: enums.AggregateAccount,
			Version:       1,
			Topic:         ledgerTopic,
			decode:        decodeInto[payloads.LedgerEntryEvent],
		},
		{
			EventType:     enums.EventAccountCreated,
			AggregateType: enums.AggregateAccount,
			Version:       1,
			Topic:         ledgerTopic,
			decode:        decodeInto[payloads.AccountCreatedEvent],
		},
	}
}

func decodeInto[T any](raw json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	return v, nil
}
