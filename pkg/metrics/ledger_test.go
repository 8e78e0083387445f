package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLedgerMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.ObserveDebit("code", 40, true)
	m.ObserveDebit("code", 40, true)
	m.ObserveDebit("blog", 50, false)
	m.ObserveCredit("purchase", 500, false)
	m.ObserveCredit("purchase", 500, true)
	m.IncRetry("debit")
	m.IncReconcileMismatch()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterWithLabels(t, mfs, "aiforge_ledger_tokens_total", map[string]string{"direction": "debit", "kind": "code"}); got != 80 {
		t.Fatalf("expected 80 debited code tokens, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "aiforge_ledger_tokens_total", map[string]string{"direction": "credit", "kind": "purchase"}); got != 500 {
		t.Fatalf("expected duplicate credit to move no tokens, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "aiforge_ledger_operations_total", map[string]string{"operation": "debit", "kind": "blog", "outcome": "refused"}); got != 1 {
		t.Fatalf("expected one refused blog debit, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "aiforge_ledger_operations_total", map[string]string{"operation": "credit", "kind": "purchase", "outcome": "duplicate"}); got != 1 {
		t.Fatalf("expected one duplicate credit, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "aiforge_ledger_transaction_retries_total", map[string]string{"operation": "debit"}); got != 1 {
		t.Fatalf("expected one retry, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "aiforge_ledger_reconcile_mismatches_total", nil); got != 1 {
		t.Fatalf("expected one mismatch, got %f", got)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveDebit("code", 1, true)
	m.ObserveCredit("purchase", 1, false)
	m.IncRetry("credit")
	m.IncReconcileMismatch()

	noop := NewLedgerMetrics(nil)
	noop.ObserveDebit("code", 1, true)
}
