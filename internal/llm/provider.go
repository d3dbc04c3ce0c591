package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Generator produces free-form text for a single prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Endpoint is what every remote service needs; an empty APIKey means the
// service is not configured.
type Endpoint struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (e Endpoint) Enabled() bool {
	return strings.TrimSpace(e.APIKey) != ""
}

// StatusError reports a non-success HTTP status from a remote service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s status %d", e.Service, e.Code)
	}
	return fmt.Sprintf("%s status %d: %s", e.Service, e.Code, e.Body)
}

// RateLimited reports whether the remote refused the call for quota reasons.
func (e *StatusError) RateLimited() bool {
	return e.Code == http.StatusTooManyRequests
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
