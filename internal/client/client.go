package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bodyfeel/internal/domain"
	"bodyfeel/internal/emotion"
)

const DefaultTimeout = 90 * time.Second

// Client talks to a running bodyfeel server.
type Client struct {
	baseURL string
	http    *http.Client
}

// APIError is a non-success reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bodyfeel server status=%d", e.StatusCode)
	}
	return fmt.Sprintf("bodyfeel server status=%d: %s", e.StatusCode, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error) {
	var out domain.AnalyzeResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/emotions/analyze", req, &out)
	return out, err
}

func (c *Client) Status(ctx context.Context) (emotion.Status, error) {
	var out emotion.Status
	err := c.do(ctx, http.MethodGet, "/api/v1/emotions/status", nil, &out)
	return out, err
}

func (c *Client) Stats(ctx context.Context) (domain.StorageStats, error) {
	var out domain.StorageStats
	err := c.do(ctx, http.MethodGet, "/api/v1/body-mappings/stats/overview", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Enabled() {
		return fmt.Errorf("bodyfeel server is not configured")
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)
	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && env.Message != "" {
			msg = env.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}
