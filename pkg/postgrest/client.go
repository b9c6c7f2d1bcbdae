// Package postgrest is a minimal client for PostgREST-compatible table APIs
// (such as the one exposed by Supabase under /rest/v1).
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the project URL, e.g. https://xyz.supabase.co. The
	// /rest/v1 prefix is appended by the client.
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Debug   bool
}

// Client performs select/insert/update/delete calls against tables.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	debug      bool
}

// NewClient constructs a new Client with sane defaults.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/rest/v1",
		apiKey:     cfg.APIKey,
		debug:      cfg.Debug,
	}
}

// Filter is a single column predicate, rendered as column=op.value.
type Filter struct {
	Column   string
	Operator string
	Value    string
}

// Eq matches rows whose column equals value.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Operator: "eq", Value: fmt.Sprint(value)}
}

// APIError is an error response from the table API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest %d: %s", e.Status, e.Message)
}

// IsMissingRelation reports whether err means the table or row does not exist
// (PGRST116 no rows, PGRST106/PGRST205 unknown schema/table, 42P01 undefined table).
func IsMissingRelation(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "PGRST116", "PGRST106", "PGRST205", "42P01":
		return true
	}
	return apiErr.Status == http.StatusNotFound
}

// Select reads rows of table matching filters into out (a pointer to a slice).
// columns defaults to "*"; order is a PostgREST order expression such as "name.asc".
func (c *Client) Select(ctx context.Context, table, columns, order string, out interface{}, filters ...Filter) error {
	q := filterQuery(filters)
	if columns == "" {
		columns = "*"
	}
	q.Set("select", columns)
	if order != "" {
		q.Set("order", order)
	}
	return c.doRequest(ctx, http.MethodGet, table, q, nil, out)
}

// Probe reads at most one row of table, discarding it. It fails when the API
// is unreachable, the key is rejected or the table is unknown.
func (c *Client) Probe(ctx context.Context, table string) error {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("limit", "1")
	var rows []json.RawMessage
	return c.doRequest(ctx, http.MethodGet, table, q, nil, &rows)
}

// Insert inserts rows (a struct or slice) into table.
func (c *Client) Insert(ctx context.Context, table string, rows interface{}) error {
	return c.doRequest(ctx, http.MethodPost, table, url.Values{}, rows, nil)
}

// Update patches every row of table matching filters.
func (c *Client) Update(ctx context.Context, table string, patch interface{}, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("postgrest: refusing unfiltered update on %s", table)
	}
	return c.doRequest(ctx, http.MethodPatch, table, filterQuery(filters), patch, nil)
}

// Delete deletes every row of table matching filters.
func (c *Client) Delete(ctx context.Context, table string, filters ...Filter) error {
	if len(filters) == 0 {
		return fmt.Errorf("postgrest: refusing unfiltered delete on %s", table)
	}
	return c.doRequest(ctx, http.MethodDelete, table, filterQuery(filters), nil, nil)
}

func filterQuery(filters []Filter) url.Values {
	q := url.Values{}
	for _, f := range filters {
		q.Add(f.Column, f.Operator+"."+f.Value)
	}
	return q
}

// doRequest performs one HTTP call and decodes the JSON response into result
// when result is non-nil. Non-2xx responses are returned as *APIError.
func (c *Client) doRequest(ctx context.Context, method, table string, query url.Values, body interface{}, result interface{}) error {
	endpoint := c.baseURL + "/" + table
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	if c.debug {
		ev := log.Debug().Str("method", method).Str("endpoint", endpoint)
		if payload != nil {
			ev = ev.RawJSON("request", payload)
		}
		ev.Msg("[POSTGREST] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=minimal")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", endpoint).
			Int("status_code", resp.StatusCode).
			Int("bytes", len(respBody)).
			Msg("[POSTGREST] Incoming response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(respBody, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
