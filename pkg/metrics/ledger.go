package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeApplied   = "applied"
	outcomeRefused   = "refused"
	outcomeDuplicate = "duplicate"
)

// LedgerMetrics counts ledger mutations and the tokens they move.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	tokens     *prometheus.CounterVec
	retries    *prometheus.CounterVec
	mismatches prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer. A
// nil registerer yields a no-op recorder.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_operations_total",
		Help:      "Ledger debit/credit attempts by outcome.",
	}, []string{"operation", "kind", "outcome"})
	tokens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_tokens_total",
		Help:      "Tokens moved by applied ledger entries.",
	}, []string{"direction", "kind"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_transaction_retries_total",
		Help:      "Ledger transactions retried after a storage conflict.",
	}, []string{"operation"})
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_reconcile_mismatches_total",
		Help:      "Accounts whose cached balance disagreed with the entry log.",
	})
	reg.MustRegister(operations, tokens, retries, mismatches)
	return &LedgerMetrics{
		operations: operations,
		tokens:     tokens,
		retries:    retries,
		mismatches: mismatches,
	}
}

// ObserveDebit records a debit attempt. Refused debits move no tokens.
func (m *LedgerMetrics) ObserveDebit(kind string, amount int64, applied bool) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := outcomeRefused
	if applied {
		outcome = outcomeApplied
		m.tokens.WithLabelValues("debit", normalizeLabel(kind)).Add(float64(amount))
	}
	m.operations.WithLabelValues("debit", normalizeLabel(kind), outcome).Inc()
}

// ObserveCredit records a credit. Duplicates replayed by reference move no tokens.
func (m *LedgerMetrics) ObserveCredit(kind string, amount int64, duplicate bool) {
	if m == nil || m.operations == nil {
		return
	}
	outcome := outcomeApplied
	if duplicate {
		outcome = outcomeDuplicate
	} else {
		m.tokens.WithLabelValues("credit", normalizeLabel(kind)).Add(float64(amount))
	}
	m.operations.WithLabelValues("credit", normalizeLabel(kind), outcome).Inc()
}

// IncRetry counts one retried transaction for operation.
func (m *LedgerMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncReconcileMismatch counts an account that failed reconciliation.
func (m *LedgerMetrics) IncReconcileMismatch() {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.Inc()
}
