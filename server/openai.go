package server

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"voxcall/dispatch"
	"voxcall/log"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// Extractor finds function calls in a piece of text. A nil result with a
// nil error means the model called nothing.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]dispatch.FunctionCall, error)
}

// UpstreamError is a failed chat-completions call.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return e.Message
	}
	return fmt.Sprintf("openai status %d: %s", e.StatusCode, e.Message)
}

// Auth reports whether the failure was caused by the API key.
func (e *UpstreamError) Auth() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "api key")
}

// OpenAI calls an OpenAI-compatible chat-completions endpoint with the
// catalog's tools.
type OpenAI struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	catalog Catalog
	tools   []openAITool
}

func NewOpenAI(client *http.Client, baseURL, apiKey, model string, catalog Catalog) (*OpenAI, error) {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	tools := make([]openAITool, 0, len(catalog.Tools))
	for _, t := range catalog.Tools {
		params, err := t.schema()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", t.Name, err)
		}
		tools = append(tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return &OpenAI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		catalog: catalog,
		tools:   tools,
	}, nil
}

type openAIRequest struct {
	Model      string          `json:"model"`
	Messages   []openAIMessage `json:"messages"`
	Tools      []openAITool    `json:"tools,omitempty"`
	ToolChoice string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

func (p *OpenAI) Extract(ctx context.Context, text string) ([]dispatch.FunctionCall, error) {
	payload := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "system", Content: p.catalog.SystemPrompt},
			{Role: "user", Content: text},
		},
		Tools:      p.tools,
		ToolChoice: "auto",
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var parsed openAIResponse
	parseErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if parseErr == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}
	if parseErr != nil {
		return nil, fmt.Errorf("decode openai response: %w", parseErr)
	}
	if parsed.Error != nil {
		return nil, &UpstreamError{Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty openai response")
	}

	msg := parsed.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		log.Infof("no function called; model replied %q", msg.Content)
		return nil, nil
	}

	var calls []dispatch.FunctionCall
	for _, tc := range msg.ToolCalls {
		if tc.Type != "" && tc.Type != "function" {
			continue
		}
		args := json.RawMessage(tc.Function.Arguments)
		if !isObject(args) {
			log.Warnf("skipping %s: arguments are not a JSON object: %s", tc.Function.Name, tc.Function.Arguments)
			continue
		}
		calls = append(calls, dispatch.FunctionCall{
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Arguments:  args,
		})
	}
	if len(calls) == 0 {
		log.Warn("tool calls received but none could be parsed")
		return nil, nil
	}
	return calls, nil
}

func isObject(raw json.RawMessage) bool {
	var m map[string]any
	return json.Unmarshal(raw, &m) == nil && m != nil
}
