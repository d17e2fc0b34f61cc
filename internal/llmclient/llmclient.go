// Copyright (C) 2025 Redstring Bridge Contributors
// Licensed under the GNU Affero General Public License v3.0 or later.

// Package llmclient implements the chat-completions contract: POST,
// bearer auth, JSON body with model/messages/tools/tool_choice/
// max_tokens/temperature, and the coordinator's required status-code
// handling (200 parse, 401 auth error, 404 model unknown, 429
// rate-limit, 5xx transient).
//
// The wire-level Request/Response/Message/ToolCall/ToolChoice shapes are
// grounded on services/code_buddy/agent/llm.Client's interface; the
// status-code-to-error translation is grounded on
// services/orchestrator/handlers.HandleAgentStep's
// `resp.StatusCode != http.StatusOK` branch, generalized from one
// catch-all proxy error into the five distinct dispositions the
// coordinator needs to distinguish.
//
// Thread Safety:
//
//	Client is safe for concurrent use; the underlying openai.Client holds
//	no mutable request state.
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/theredstring/bridge/internal/tools"
)

// AuthError is a permanent, user-visible failure: the configured API key
// was rejected (HTTP 401).
type AuthError struct{ Message string }

func (e *AuthError) Error() string { return fmt.Sprintf("LLM authentication failed: %s", e.Message) }

// ModelError is a permanent failure: the requested model is unknown to the
// provider (HTTP 404). The coordinator turns this into user guidance
// rather than a bare error string.
type ModelError struct{ Message string }

func (e *ModelError) Error() string { return fmt.Sprintf("LLM model not found: %s", e.Message) }

// RateLimitError is a transient, back-off-and-retry failure (HTTP 429).
type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return fmt.Sprintf("LLM rate limited: %s", e.Message) }

// TransientError covers 5xx responses, network failures, and malformed
// responses — the caller should treat the originating task as a
// transient error and let the queue redeliver.
type TransientError struct{ Message string }

func (e *TransientError) Error() string { return fmt.Sprintf("LLM request failed: %s", e.Message) }

// ToolChoice controls how the model should select tools for this turn.
type ToolChoice struct {
	// Type is one of "auto", "none", or "tool".
	Type string
	// Name is required when Type is "tool".
	Name string
}

// ToolChoiceAuto lets the model decide whether to call a tool.
func ToolChoiceAuto() *ToolChoice { return &ToolChoice{Type: "auto"} }

// ToolChoiceNone forces a text-only response.
func ToolChoiceNone() *ToolChoice { return &ToolChoice{Type: "none"} }

// ToolChoiceRequired forces the model to call the named tool.
func ToolChoiceRequired(name string) *ToolChoice { return &ToolChoice{Type: "tool", Name: name} }

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON, validated downstream by internal/tools.
}

// Message is one turn of conversation history.
type Message struct {
	Role       string // "system", "user", "assistant", or "tool".
	Content    string
	ToolCalls  []ToolCall // populated on assistant messages that called tools.
	ToolCallID string     // set on a "tool" message, linking back to a ToolCall.ID.
}

// Request is one completion call to the LLM provider.
type Request struct {
	SystemPrompt string
	Messages     []Message

	// ToolNames selects which of the registry's tool schemas to advertise
	// to the model as callable functions. Nil means no tools are offered.
	ToolNames  []string
	ToolChoice *ToolChoice
}

// Response is the parsed result of a completion call.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Model      string
}

// HasToolCalls reports whether the model chose to call one or more tools.
func (r *Response) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Client wraps the OpenAI-compatible chat-completions API.
type Client struct {
	oai         *openai.Client
	registry    *tools.Registry
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
}

// Option configures a Client at construction.
type Option func(*Client)

// WithTimeout overrides the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTemperature overrides the default sampling temperature.
func WithTemperature(t float32) Option {
	return func(c *Client) { c.temperature = t }
}

// WithMaxTokens overrides the default response token cap.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = n }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint other
// than the default (e.g. a self-hosted or alternate-provider gateway, or
// a test server).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		cfg := c.oai.GetConfig()
		cfg.BaseURL = url
		c.oai = openai.NewClientWithConfig(cfg)
	}
}

// New builds a Client for the given API key and model, drawing its tool
// surface from registry.
func New(apiKey, model string, registry *tools.Registry, opts ...Option) *Client {
	c := &Client{
		oai:         openai.NewClient(apiKey),
		registry:    registry,
		model:       model,
		temperature: 0.7,
		maxTokens:   1024,
		timeout:     45 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends req to the provider and returns the parsed response, or
// one of AuthError/ModelError/RateLimitError/TransientError depending on
// the provider's status code.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, toOpenAIMessage(m))
	}

	ccr := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}
	if len(req.ToolNames) > 0 {
		ccr.Tools = c.buildToolDefinitions(req.ToolNames)
	}
	if req.ToolChoice != nil {
		ccr.ToolChoice = toOpenAIToolChoice(*req.ToolChoice)
	}

	resp, err := c.oai.CreateChatCompletion(ctx, ccr)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &TransientError{Message: "provider returned no choices"}
	}

	choice := resp.Choices[0]
	out := &Response{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// buildToolDefinitions advertises the named tools' schemas to the model as
// JSON-Schema function parameters, drawn from internal/tools.Registry —
// the same closed schema table the Executor validates arguments against,
// so the model and the validator never disagree about the tool surface.
func (c *Client) buildToolDefinitions(names []string) []openai.Tool {
	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		schema, ok := c.registry.Schema(name)
		if !ok {
			continue
		}
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:       name,
				Parameters: schemaToJSONSchema(schema),
			},
		})
	}
	return defs
}

func schemaToJSONSchema(s tools.Schema) map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = fieldToJSONSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func fieldToJSONSchema(f tools.Field) map[string]any {
	switch f.Kind {
	case tools.KindFloat:
		return map[string]any{"type": "number"}
	case tools.KindBool:
		return map[string]any{"type": "boolean"}
	case tools.KindStringSlice:
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case tools.KindAny:
		// Edge tuples are object-shaped; internal/executor owns the
		// detailed shape validation past this presence check.
		return map[string]any{}
	default:
		return map[string]any{"type": "string"}
	}
}

func toOpenAIMessage(m Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func toOpenAIToolChoice(tc ToolChoice) any {
	switch tc.Type {
	case "none":
		return "none"
	case "tool":
		return openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: tc.Name},
		}
	default:
		return "auto"
	}
}

// classifyError maps a go-openai error into the five dispositions the
// coordinator needs to distinguish.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return &AuthError{Message: apiErr.Message}
		case http.StatusNotFound:
			return &ModelError{Message: apiErr.Message}
		case http.StatusTooManyRequests:
			return &RateLimitError{Message: apiErr.Message}
		default:
			if apiErr.HTTPStatusCode >= 500 {
				return &TransientError{Message: apiErr.Message}
			}
			return fmt.Errorf("LLM request rejected: %s", apiErr.Message)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransientError{Message: reqErr.Error()}
	}

	// Network failure, context deadline, or another unclassified error —
	// all are transient from the coordinator's perspective.
	return &TransientError{Message: err.Error()}
}
