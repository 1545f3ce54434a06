// Package influx wraps the InfluxDB 2.x client with the small query surface
// the domain backends need: run a Flux query, get back ordered rows.
package influx

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

var (
	// ErrConnect indicates the InfluxDB server was not reachable or not ready.
	ErrConnect = errors.New("failed to connect to InfluxDB")

	// ErrQuery indicates a Flux query failed to execute.
	ErrQuery = errors.New("influxdb query failed")

	// ErrMalformedRow indicates a result row did not have the expected shape.
	ErrMalformedRow = errors.New("malformed row in query result")
)

// Row is a single (time, value) result row from a Flux query.
type Row struct {
	Time  time.Time
	Value float64
}

// RowQuerier is the query surface consumed by the domain backends.
type RowQuerier interface {
	QueryRows(ctx context.Context, flux string) ([]Row, error)
}

// Config holds InfluxDB connection settings.
type Config struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Client is a thin wrapper over the influxdb2 query API.
type Client struct {
	client   influxdb2.Client
	queryAPI api.QueryAPI
	bucket   string
}

// defaultTimeout bounds connection and query HTTP requests when the
// config leaves the timeout unset.
const defaultTimeout = time.Minute

// Connect creates an InfluxDB client and verifies the server is ready.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := influxdb2.DefaultOptions()
	opts = opts.SetHTTPRequestTimeout(uint(cfg.Timeout / time.Second))
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if _, err := client.Ready(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnect, err)
	}

	return &Client{
		client:   client,
		queryAPI: client.QueryAPI(cfg.Org),
		bucket:   cfg.Bucket,
	}, nil
}

// Bucket returns the configured bucket name, for use in Flux query builders.
func (c *Client) Bucket() string {
	return c.bucket
}

// QueryRows executes a Flux query and collects the (time, value) rows in
// result order. Rows with a null value are skipped; rows with a non-numeric
// value fail with ErrMalformedRow.
func (c *Client) QueryRows(ctx context.Context, flux string) ([]Row, error) {
	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	var rows []Row
	for result.Next() {
		record := result.Record()
		switch v := record.Value().(type) {
		case nil:
			continue
		case float64:
			rows = append(rows, Row{Time: record.Time(), Value: v})
		case int64:
			rows = append(rows, Row{Time: record.Time(), Value: float64(v)})
		default:
			return nil, fmt.Errorf("%w: field %q has non-numeric value %v",
				ErrMalformedRow, record.Field(), record.Value())
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	return rows, nil
}

// Close shuts down the underlying HTTP client.
func (c *Client) Close() {
	c.client.Close()
}
