package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	defaultAnthropicModel   = "claude-sonnet-4-5"
	anthropicVersion        = "2023-06-01"
)

// AnthropicClient implements Conversation over the Anthropic Messages API
// wire format using only net/http and encoding/json. The wire format itself
// is the opaque collaborator spec.md §1 scopes out of this system, so this
// client is deliberately thin: it does not attempt to expose every provider
// feature, only what the agent loop's turn protocol needs.
type AnthropicClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature *float64
}

// NewAnthropicClient creates a client reading its API key from apiKey
// (callers resolve this from ANTHROPIC_API_KEY per spec.md §6.6). Returns
// an error if apiKey is empty, since a client with no key can never
// complete a request.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY is required")
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    defaultAnthropicBaseURL,
		apiKey:     apiKey,
		model:      defaultAnthropicModel,
		maxTokens:  4096,
	}, nil
}

// WithModel overrides the default model.
func (c *AnthropicClient) WithModel(model string) *AnthropicClient {
	c.model = model
	return c
}

// WithTemperature pins sampling temperature, e.g. 0 for the evaluation
// harness's deterministic destructiveness classifier (spec.md §4.6).
func (c *AnthropicClient) WithTemperature(temperature float64) *AnthropicClient {
	c.temperature = &temperature
	return c
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature *float64            `json:"temperature,omitempty"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	Tools       []anthropicToolSpec `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *anthropicError         `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"` // "text" or "tool_use"
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Send implements Conversation. System messages are collapsed into the
// request's top-level "system" field (the Anthropic wire format has no
// system role in the messages array); everything else maps role-for-role.
func (c *AnthropicClient) Send(ctx context.Context, messages []Message, tools []ToolDefinition) (Reply, error) {
	req := anthropicRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			if req.System != "" {
				req.System += "\n\n"
			}
			req.System += m.Content
			continue
		}
		req.Messages = append(req.Messages, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, anthropicToolSpec{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.ParametersSchema,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Reply{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Reply{}, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("llm: read response: %w", err)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Reply{}, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if parsed.Error != nil {
		return Reply{}, fmt.Errorf("llm: api error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	return replyFromBlocks(parsed.Content)
}

// ErrProtocol marks an unparseable model response, the LLMProtocol
// taxonomy entry of spec.md §7. The agent loop retries once without tool
// definitions on this error before escalating.
var ErrProtocol = fmt.Errorf("llm: protocol error")

func replyFromBlocks(blocks []anthropicContentBlock) (Reply, error) {
	var text string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			text += b.Text
		case "tool_use":
			return Reply{ToolCall: &ToolCall{ID: b.ID, Name: b.Name, Arguments: string(b.Input)}}, nil
		}
	}
	if text == "" {
		return Reply{}, fmt.Errorf("%w: no text or tool_use block in response", ErrProtocol)
	}
	return Reply{Text: text}, nil
}
