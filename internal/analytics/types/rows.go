package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// UsageRow mirrors the token_usage BigQuery schema. One row is written per
// applied ledger entry.
type UsageRow struct {
	EventID      string    `bigquery:"event_id"`
	EventType    string    `bigquery:"event_type"`
	AccountID    string    `bigquery:"account_id"`
	EntryID      string    `bigquery:"entry_id"`
	Sequence     int64     `bigquery:"sequence"`
	Amount       int64     `bigquery:"amount"`
	Kind         string    `bigquery:"kind"`
	BalanceAfter int64     `bigquery:"balance_after"`
	Reference    *string   `bigquery:"reference"`
	OccurredAt   time.Time `bigquery:"occurred_at"`
}

// UsageSchema is the token_usage table layout, partitioned by day on occurred_at.
var UsageSchema = cbigquery.Schema{
	{Name: "event_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "event_type", Type: cbigquery.StringFieldType, Required: true},
	{Name: "account_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "entry_id", Type: cbigquery.StringFieldType, Required: true},
	{Name: "sequence", Type: cbigquery.IntegerFieldType, Required: true},
	{Name: "amount", Type: cbigquery.IntegerFieldType, Required: true},
	{Name: "kind", Type: cbigquery.StringFieldType, Required: true},
	{Name: "balance_after", Type: cbigquery.IntegerFieldType, Required: true},
	{Name: "reference", Type: cbigquery.StringFieldType},
	{Name: "occurred_at", Type: cbigquery.TimestampFieldType, Required: true},
}

const UsagePartitionField = "occurred_at"

// Save implements bigquery.ValueSaver. The entry id doubles as the insert id so
// redelivered events are deduplicated by the streaming API.
func (r *UsageRow) Save() (map[string]cbigquery.Value, string, error) {
	row := map[string]cbigquery.Value{
		"event_id":      r.EventID,
		"event_type":    r.EventType,
		"account_id":    r.AccountID,
		"entry_id":      r.EntryID,
		"sequence":      r.Sequence,
		"amount":        r.Amount,
		"kind":          r.Kind,
		"balance_after": r.BalanceAfter,
		"occurred_at":   r.OccurredAt,
	}
	if r.Reference != nil {
		row["reference"] = *r.Reference
	} else {
		row["reference"] = nil
	}
	return row, r.EntryID, nil
}
