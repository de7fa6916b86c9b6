// Package openai implements modeladapter.Completer on top of the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/chats/chat"
	"github.com/germanamz/contentcrew/pkg/chats/content"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/chats/role"
	"github.com/germanamz/contentcrew/pkg/modeladapter"
	"github.com/germanamz/contentcrew/pkg/modeladapter/usage"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

const (
	// DefaultBaseURL is the public OpenAI endpoint.
	DefaultBaseURL = "https://api.openai.com"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	completionsPath = "/v1/chat/completions"
)

// ErrRefused is returned when the model declines to answer.
var ErrRefused = errors.New("openai: model refused")

// ErrTruncated is returned when a final answer was cut off by the token limit.
var ErrTruncated = errors.New("openai: reply truncated at the token limit")

var _ modeladapter.Completer = (*Adapter)(nil)

// Adapter talks to an OpenAI-compatible Chat Completions endpoint.
type Adapter struct {
	modeladapter.ModelAdapter
}

// Option customises an Adapter.
type Option func(*Adapter)

// WithTemperature sets the sampling temperature. Zero keeps the API default.
func WithTemperature(t float64) Option {
	return func(a *Adapter) { a.Temperature = t }
}

// WithMaxTokens caps the length of each reply.
func WithMaxTokens(n int) Option {
	return func(a *Adapter) { a.MaxTokens = n }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.HTTPClient = c }
}

// WithOrganization sets the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(a *Adapter) {
		if org == "" {
			return
		}
		if a.Headers == nil {
			a.Headers = map[string]string{}
		}
		a.Headers["OpenAI-Organization"] = org
	}
}

// New creates an Adapter. Empty baseURL and model fall back to DefaultBaseURL
// and DefaultModel.
func New(baseURL, apiKey, model string, opts ...Option) *Adapter {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	a := &Adapter{}
	a.BaseURL = strings.TrimRight(baseURL, "/")
	a.Auth = apiclient.Auth{Key: apiKey}
	a.Name = model
	a.HeaderParser = apiclient.ParseOpenAIRateLimitHeaders

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Complete sends the conversation and returns the assistant's reply.
func (a *Adapter) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	var resp apiResponse
	if err := a.PostJSON(ctx, completionsPath, a.buildRequest(c, tools), &resp); err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}

	a.Usage.Record(agentctx.AgentRoleFromContext(ctx), usage.TokenCount{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return message.Message{}, errors.New("openai: empty choices in response")
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return message.Message{}, fmt.Errorf("%w: %s", ErrRefused, choice.Message.Refusal)
	}

	msg, err := parseChoice(choice)
	if err != nil {
		return message.Message{}, err
	}
	if choice.FinishReason == "length" && len(msg.ToolCalls()) == 0 {
		if a.MaxTokens > 0 {
			return message.Message{}, fmt.Errorf("%w (max_tokens %d)", ErrTruncated, a.MaxTokens)
		}
		return message.Message{}, ErrTruncated
	}
	return msg, nil
}

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature *float64     `json:"temperature,omitempty"`
	Tools       []apiToolDef `json:"tools,omitempty"`
}

type apiMessage struct {
	Role       string        `json:"role"`
	Content    *string       `json:"content"`
	ToolCalls  []apiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type apiToolCall struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Function apiToolFunction `json:"function"`
}

type apiToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type apiToolDef struct {
	Type     string         `json:"type"`
	Function apiToolDefFunc `json:"function"`
}

type apiToolDefFunc struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type apiResponse struct {
	Choices []apiChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type apiChoice struct {
	Message struct {
		Role      string        `json:"role"`
		Content   *string       `json:"content"`
		Refusal   string        `json:"refusal,omitempty"`
		ToolCalls []apiToolCall `json:"tool_calls,omitempty"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

func (a *Adapter) buildRequest(c *chat.Chat, tools []toolbox.Tool) apiRequest {
	req := apiRequest{
		Model:     a.Name,
		MaxTokens: a.MaxTokens,
	}

	if a.Temperature != 0 {
		t := a.Temperature
		req.Temperature = &t
	}

	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		req.Tools = append(req.Tools, apiToolDef{
			Type: "function",
			Function: apiToolDefFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schema,
			},
		})
	}

	for _, m := range c.Messages() {
		req.Messages = append(req.Messages, toAPIMessages(m)...)
	}

	return req
}

// toAPIMessages maps one chat message to wire messages. A tool message holding
// several results becomes one "tool" message per result.
func toAPIMessages(m message.Message) []apiMessage {
	switch m.Role {
	case role.System, role.User:
		text := m.TextContent()
		return []apiMessage{{Role: string(m.Role), Content: &text}}

	case role.Assistant:
		msg := apiMessage{Role: "assistant"}
		if text := m.TextContent(); text != "" {
			msg.Content = &text
		}
		for _, tc := range m.ToolCalls() {
			msg.ToolCalls = append(msg.ToolCalls, apiToolCall{
				ID:       tc.ID,
				Type:     "function",
				Function: apiToolFunction{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		return []apiMessage{msg}

	case role.Tool:
		var out []apiMessage
		for _, p := range m.Parts {
			tr, ok := p.(content.ToolResult)
			if !ok {
				continue
			}
			text := tr.Text()
			out = append(out, apiMessage{Role: "tool", Content: &text, ToolCallID: tr.ToolCallID})
		}
		return out
	}

	return nil
}

func parseChoice(choice apiChoice) (message.Message, error) {
	r := role.Assistant
	if name := choice.Message.Role; name != "" {
		var err error
		if r, err = role.Parse(name); err != nil {
			return message.Message{}, fmt.Errorf("openai: %w", err)
		}
	}

	var parts []content.Part

	if c := choice.Message.Content; c != nil && *c != "" {
		parts = append(parts, content.Text{Text: *c})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, content.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return message.New("", r, parts...), nil
}
