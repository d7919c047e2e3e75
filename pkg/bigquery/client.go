// Package bigquery wraps the BigQuery streaming insert API for the analytics
// worker.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/abdulbasit0-UI/storefront-backend/pkg/config"
	"github.com/abdulbasit0-UI/storefront-backend/pkg/logger"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string
}

// NewClient dials BigQuery and fails unless the dataset and every configured
// table already exist. Schema is managed outside the service.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID, datasetID, tables, err := resolve(gcp, cfg)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bq, dataset: bq.Dataset(datasetID), tables: tables}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"bq_project": projectID,
			"bq_dataset": datasetID,
			"bq_tables":  tables,
		}), "bigquery client initialized")
	}
	return c, nil
}

func resolve(gcp config.GCPConfig, cfg config.BigQueryConfig) (project, dataset string, tables []string, err error) {
	if project = strings.TrimSpace(gcp.ProjectID); project == "" {
		return "", "", nil, errProjectIDRequired
	}
	if dataset = strings.TrimSpace(cfg.Dataset); dataset == "" {
		return "", "", nil, errDatasetRequired
	}
	if table := strings.TrimSpace(cfg.OrdersTable); table != "" {
		tables = append(tables, table)
	}
	if len(tables) == 0 {
		return "", "", nil, errTableNameRequired
	}
	return project, dataset, tables, nil
}

// clientOptions prefers inline credentials over a credentials file. With
// neither, the library falls back to application default credentials.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping checks that the dataset and every table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return metadataError("dataset", c.dataset.DatasetID, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range c.tables {
		g.Go(func() error {
			if _, err := c.dataset.Table(name).Metadata(gctx); err != nil {
				return metadataError("table", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Put streams rows into table. Rows carry their own insert ids so BigQuery
// can drop replays of the same event. Columns added to the table ahead of a
// deploy are tolerated.
func (c *Client) Put(ctx context.Context, table string, rows []bigquery.ValueSaver) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	inserter := c.dataset.Table(table).Inserter()
	inserter.IgnoreUnknownValues = true
	return inserter.Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func metadataError(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
