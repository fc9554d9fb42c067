package recordstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal CRUD client for one collection of the remote tabular
// record store. Every call crosses the network; there is no caching and no
// retrying. Retry policy, if any, belongs to the caller.
type Client struct {
	httpClient    *http.Client
	collectionURL string
	token         string
}

type Config struct {
	BaseURL string
	Token   string
	BaseID  string
	Table   string
	Timeout time.Duration
}

type Record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// StoreError reports a failed store operation. Status is zero when the
// request never reached the store.
type StoreError struct {
	Status  int
	Message string
}

func (e *StoreError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("record store unreachable: %s", e.Message)
	}
	return fmt.Sprintf("record store returned status=%d: %s", e.Status, e.Message)
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		collectionURL: fmt.Sprintf("%s/%s/%s", base, cfg.BaseID, url.PathEscape(cfg.Table)),
		token:         cfg.Token,
	}
}

// EqualsFilter builds the filter expression for an exact field match.
func EqualsFilter(field, value string) string {
	escaped := strings.ReplaceAll(value, "'", "\\'")
	return fmt.Sprintf("{%s} = '%s'", field, escaped)
}

func (c *Client) Query(ctx context.Context, filterExpression string) ([]Record, error) {
	endpoint := c.collectionURL
	if strings.TrimSpace(filterExpression) != "" {
		endpoint += "?filterByFormula=" + url.QueryEscape(filterExpression)
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Records []Record `json:"records"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("decode query response: %v", err)}
	}
	return parsed.Records, nil
}

func (c *Client) Create(ctx context.Context, fields map[string]any) (Record, error) {
	body, err := c.do(ctx, http.MethodPost, c.collectionURL, map[string]any{"fields": fields})
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(body)
}

func (c *Client) Update(ctx context.Context, recordID string, fields map[string]any) (Record, error) {
	endpoint := c.collectionURL + "/" + url.PathEscape(recordID)
	body, err := c.do(ctx, http.MethodPatch, endpoint, map[string]any{"fields": fields})
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(body)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, &StoreError{Message: fmt.Sprintf("marshal request body: %v", err)}
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &StoreError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("read response body: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StoreError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func decodeRecord(body []byte) (Record, error) {
	var record Record
	if err := json.Unmarshal(body, &record); err != nil {
		return Record{}, &StoreError{Message: fmt.Sprintf("decode record: %v", err)}
	}
	return record, nil
}

// Int reads a numeric field, tolerating the store's habit of returning
// numbers as JSON floats. Missing or non-numeric fields read as zero.
func (r Record) Int(field string) int {
	switch v := r.Fields[field].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// String reads a text field; missing fields read as the empty string.
func (r Record) String(field string) string {
	if v, ok := r.Fields[field].(string); ok {
		return v
	}
	return ""
}
