package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// FunctionCall is one structured call extracted by the backend. Arguments
// is kept raw; the renderer decides how to lay it out.
type FunctionCall struct {
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"function_name"`
	Arguments  json.RawMessage `json:"arguments"`
}

// BackendError is a non-2xx reply from the backend.
type BackendError struct {
	StatusCode int
	Detail     string
}

func (e *BackendError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Backend error: %d", e.StatusCode)
}

// Backend extracts function calls from one utterance.
type Backend interface {
	ProcessText(ctx context.Context, text string) ([]FunctionCall, *NetworkMetrics, error)
}

// Client calls POST {base}/process-text.
type Client struct {
	http    *TracedClient
	url     string
	timeout time.Duration
}

// NewClient returns a client for the backend at base. A zero timeout lets
// calls run until the backend answers.
func NewClient(base string, timeout time.Duration) *Client {
	return &Client{
		http:    NewTracedClient(),
		url:     strings.TrimRight(base, "/") + "/process-text",
		timeout: timeout,
	}
}

func (c *Client) URL() string { return c.url }

type processRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Detail any `json:"detail"`
}

func (c *Client) ProcessText(ctx context.Context, text string) ([]FunctionCall, *NetworkMetrics, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(processRequest{Text: text})
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, metrics, err := c.http.Do(req)
	if err != nil {
		return nil, metrics, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, metrics, &BackendError{StatusCode: resp.StatusCode, Detail: detail(resp.Body)}
	}

	var calls []FunctionCall
	if err := json.Unmarshal(resp.Body, &calls); err != nil {
		return nil, metrics, fmt.Errorf("backend response parse error: %w", err)
	}
	return calls, metrics, nil
}

// detail returns the "detail" field of an error body when it is a string.
func detail(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err != nil {
		return ""
	}
	s, _ := er.Detail.(string)
	return s
}
