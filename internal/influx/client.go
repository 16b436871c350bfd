// Package influx executes InfluxQL queries over the InfluxDB 1.x HTTP API.
package influx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/senthilkumarv/aq-telemetry/internal/telemetry"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 32 << 20

// ClientConfig holds configuration for the InfluxDB client
type ClientConfig struct {
	Host            string
	Token           string
	Database        string
	RetentionPolicy string
	Timeout         time.Duration

	// HTTPClient is optional; a client with Timeout is created when nil
	HTTPClient *http.Client
}

// Client runs InfluxQL queries and implements telemetry.Executor
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	baseURL    string
}

// QueryResponse represents the response from the /query endpoint
type QueryResponse struct {
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// Result is the outcome of one statement
type Result struct {
	StatementID int      `json:"statement_id"`
	Series      []Series `json:"series,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Series is one group of rows in a result
type Series struct {
	Name    string            `json:"name"`
	Tags    map[string]string `json:"tags,omitempty"`
	Columns []string          `json:"columns"`
	Values  [][]interface{}   `json:"values"`
}

// NewClient creates a new InfluxDB client
func NewClient(config ClientConfig) (*Client, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("influx host is required")
	}
	if config.Database == "" {
		return nil, fmt.Errorf("influx database is required")
	}
	if _, err := url.Parse(config.Host); err != nil {
		return nil, fmt.Errorf("invalid influx host: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		baseURL:    strings.TrimRight(config.Host, "/"),
	}, nil
}

// Execute runs a resolved InfluxQL query. Rows of every returned series are
// concatenated in order; series tags are appended as extra columns.
func (c *Client) Execute(ctx context.Context, query string) ([]telemetry.Row, error) {
	params := url.Values{}
	params.Set("db", c.config.Database)
	if c.config.RetentionPolicy != "" {
		params.Set("rp", c.config.RetentionPolicy)
	}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, telemetry.NewRejectedError(query, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Token "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, telemetry.NewConnectivityError(query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, telemetry.NewConnectivityError(query, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, telemetry.NewConnectivityError(query, statusError(resp.StatusCode, body))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, telemetry.NewRejectedError(query, statusError(resp.StatusCode, body))
	}

	var qr QueryResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&qr); err != nil {
		return nil, telemetry.NewConnectivityError(query, fmt.Errorf("failed to decode response: %w", err))
	}

	return qr.rows(query)
}

// Ping checks that the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/ping", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Token "+c.config.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return telemetry.NewConnectivityError("", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return telemetry.NewConnectivityError("", fmt.Errorf("ping returned status %d", resp.StatusCode))
	}
	return nil
}

func (qr *QueryResponse) rows(query string) ([]telemetry.Row, error) {
	if qr.Error != "" {
		return nil, telemetry.NewRejectedError(query, errors.New(qr.Error))
	}

	var rows []telemetry.Row
	for _, res := range qr.Results {
		if res.Error != "" {
			return nil, telemetry.NewRejectedError(query, errors.New(res.Error))
		}
		for _, s := range res.Series {
			tagKeys := make([]string, 0, len(s.Tags))
			for k := range s.Tags {
				tagKeys = append(tagKeys, k)
			}
			sort.Strings(tagKeys)

			columns := make([]string, 0, len(s.Columns)+len(tagKeys))
			columns = append(columns, s.Columns...)
			columns = append(columns, tagKeys...)

			for _, values := range s.Values {
				vals := make([]telemetry.Value, 0, len(columns))
				for i := range s.Columns {
					if i < len(values) {
						vals = append(vals, telemetry.FromAny(values[i]))
					} else {
						vals = append(vals, telemetry.Null())
					}
				}
				for _, k := range tagKeys {
					vals = append(vals, telemetry.String(s.Tags[k]))
				}
				rows = append(rows, telemetry.Row{Columns: columns, Values: vals})
			}
		}
	}
	return rows, nil
}

func statusError(code int, body []byte) error {
	var qr QueryResponse
	if err := json.Unmarshal(body, &qr); err == nil && qr.Error != "" {
		return fmt.Errorf("status %d: %s", code, qr.Error)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return fmt.Errorf("status %d: %s", code, msg)
}
