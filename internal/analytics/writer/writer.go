// Package writer streams usage rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mianhamzaathar/AIFORGE/internal/analytics/types"
)

type Config struct {
	// BatchSize rows are buffered before an insert. The worker uses 1 so a
	// message is acked only once its row is stored.
	BatchSize   int
	RetryPolicy RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.WithCappedDuration(p.MaximumBackoff, retry.NewExponential(p.InitialBackoff))
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// UsageInserter is the part of the BigQuery client the writer needs.
type UsageInserter interface {
	InsertUsage(ctx context.Context, rows []any) error
}

type BigQueryWriter struct {
	client    UsageInserter
	batchSize int
	retry     RetryPolicy

	mu      sync.Mutex
	pending []types.UsageRow
}

func New(client UsageInserter, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return &BigQueryWriter{
		client:    client,
		batchSize: max(cfg.BatchSize, 1),
		retry:     cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertUsage queues row and writes the batch once it is full.
func (w *BigQueryWriter) InsertUsage(ctx context.Context, row types.UsageRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, row)
	if len(w.pending) < w.batchSize {
		return nil
	}
	return w.flushLocked(ctx)
}

func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked empties the buffer whether or not the insert succeeds; callers
// redeliver failed rows and the entry id insert ids dedupe them.
func (w *BigQueryWriter) flushLocked(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := make([]any, 0, len(w.pending))
	for i := range w.pending {
		rows = append(rows, &w.pending[i])
	}
	defer func() { w.pending = w.pending[:0] }()

	attempt := func(ctx context.Context) error {
		err := w.client.InsertUsage(ctx, rows)
		if transient(err) {
			return retry.RetryableError(err)
		}
		return err
	}
	if err := retry.Do(ctx, w.retry.backoff(), attempt); err != nil {
		return fmt.Errorf("insert %d usage rows: %w", len(rows), err)
	}
	return nil
}
