// Package ledgerclient talks to the ledger and settings HTTP API.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pomodoro/focus/internal/model"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("ledger: http %d", e.Status)
	}
	return fmt.Sprintf("ledger: http %d %s: %s", e.Status, e.Code, e.Message)
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// IsRetryable reports whether err is worth retrying: transport failures and
// 429/5xx answers are, rejected input and auth failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

type SaveResult struct {
	Accepted  bool `json:"accepted"`
	Duplicate bool `json:"duplicate"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for baseURL. A nil httpClient gets a 10s timeout.
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

func (c *Client) GetSettings(ctx context.Context) (*model.SessionConfig, error) {
	var settings model.SessionConfig
	if err := c.do(ctx, http.MethodGet, "/api/pomodoro/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpdateSettings sends both durations and returns what the server stored.
func (c *Client) UpdateSettings(ctx context.Context, config model.SessionConfig) (*model.SessionConfig, error) {
	var settings model.SessionConfig
	if err := c.do(ctx, http.MethodPut, "/api/pomodoro/settings", config, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) PostSession(ctx context.Context, record model.SessionRecord) (*SaveResult, error) {
	var result SaveResult
	if err := c.do(ctx, http.MethodPost, "/api/pomodoro/sessions", record, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) Daily(ctx context.Context) (*model.DailyStats, error) {
	var stats model.DailyStats
	if err := c.do(ctx, http.MethodGet, "/api/pomodoro/stats/daily", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Weekly(ctx context.Context) (*model.WeeklyStats, error) {
	var stats model.WeeklyStats
	if err := c.do(ctx, http.MethodGet, "/api/pomodoro/stats/weekly", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Streak(ctx context.Context) (*model.StreakStats, error) {
	var stats model.StreakStats
	if err := c.do(ctx, http.MethodGet, "/api/pomodoro/stats/streak", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) History(ctx context.Context, limit int) ([]model.SessionRecord, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	path := "/api/pomodoro/sessions"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var envelope struct {
		Sessions []model.SessionRecord `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Sessions, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
