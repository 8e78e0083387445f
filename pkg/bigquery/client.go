// Package bigquery is the streaming-insert client for the analytics dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery usage table is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// UsageTable describes the table usage rows stream into. With a schema the
// table is created on startup when missing, partitioned by day on
// PartitionField; without one a missing table is an error.
type UsageTable struct {
	Schema         bigquery.Schema
	PartitionField string
}

type Client struct {
	bq    *bigquery.Client
	table *bigquery.Table
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, usage UsageTable, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	table := strings.TrimSpace(cfg.UsageTable)
	switch {
	case project == "":
		return nil, errProjectIDRequired
	case dataset == "":
		return nil, errDatasetRequired
	case table == "":
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{bq: bq, table: bq.Dataset(dataset).Table(table)}
	if err := c.ensureTable(ctx, usage); err != nil {
		_ = bq.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "table": table}), "bigquery client ready")
	}
	return c, nil
}

// credentials prefers inline JSON over a credentials file; with neither the
// client falls back to application default credentials.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	if strings.TrimSpace(gcp.CredentialsJSON) != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	}
	if strings.TrimSpace(gcp.ApplicationCredentials) != "" {
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

func (c *Client) ensureTable(ctx context.Context, usage UsageTable) error {
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	_, err := c.table.Metadata(ctx)
	switch {
	case err == nil:
		return nil
	case !isNotFound(err):
		return fmt.Errorf("read table %s.%s: %w", c.table.DatasetID, c.table.TableID, err)
	case len(usage.Schema) == 0:
		return fmt.Errorf("table %s.%s does not exist", c.table.DatasetID, c.table.TableID)
	}

	meta := &bigquery.TableMetadata{Schema: usage.Schema}
	if usage.PartitionField != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: usage.PartitionField}
	}
	if err := c.table.Create(ctx, meta); err != nil && !isConflict(err) {
		return fmt.Errorf("create table %s.%s: %w", c.table.DatasetID, c.table.TableID, err)
	}
	return nil
}

// Ping checks the usage table is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.table.Metadata(ctx)
	return err
}

// InsertUsage streams rows. Rows implementing bigquery.ValueSaver choose
// their own insert ids, which the streaming API uses for dedupe.
func (c *Client) InsertUsage(ctx context.Context, rows []any) error {
	if c == nil || c.table == nil {
		return errClientNotInitialized
	}
	if len(rows) == 0 {
		return nil
	}
	return c.table.Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func isNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

func isConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}
