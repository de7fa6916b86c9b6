package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/chats/chat"
	"github.com/germanamz/contentcrew/pkg/chats/content"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/chats/role"
	"github.com/germanamz/contentcrew/pkg/modeladapter/usage"
	"github.com/germanamz/contentcrew/pkg/providers/openai"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...openai.Option) *openai.Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return openai.New(srv.URL+"/", "test-key", "", opts...)
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func readBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	return req
}

func textReply(text string, in, out int) map[string]any {
	return map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]any{"role": "assistant", "content": text},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{"prompt_tokens": in, "completion_tokens": out},
	}
}

func TestNew_Defaults(t *testing.T) {
	a := openai.New("", "key", "")
	assert.Equal(t, openai.DefaultBaseURL, a.BaseURL)
	assert.Equal(t, openai.DefaultModel, a.ModelName())
	assert.Zero(t, a.Temperature)
	assert.Zero(t, a.MaxTokens)
}

func TestComplete_SimpleText(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		req := readBody(t, r)
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.NotContains(t, req, "temperature")
		assert.NotContains(t, req, "max_tokens")
		assert.NotContains(t, req, "tools")

		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)
		first, _ := msgs[0].(map[string]any)
		assert.Equal(t, "system", first["role"])

		writeJSON(t, w, textReply("# Generative AI in Medicine", 10, 5))
	})

	c := chat.New(
		message.NewText("", role.System, "You are Content Writer."),
		message.NewText("", role.User, "Write the article."),
	)

	msg, err := adapter.Complete(context.Background(), c, nil)
	require.NoError(t, err)
	assert.Equal(t, role.Assistant, msg.Role)
	assert.Equal(t, "# Generative AI in Medicine", msg.TextContent())

	last, ok := adapter.Usage.Last()
	require.True(t, ok)
	assert.Equal(t, 10, last.InputTokens)
	assert.Equal(t, 5, last.OutputTokens)
}

func TestComplete_TemperatureAndOrganization(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme", r.Header.Get("OpenAI-Organization"))

		req := readBody(t, r)
		assert.InDelta(t, 0.7, req["temperature"], 1e-9)
		assert.InDelta(t, 1000, req["max_tokens"], 1e-9)

		writeJSON(t, w, textReply("ok", 1, 1))
	}, openai.WithTemperature(0.7), openai.WithMaxTokens(1000), openai.WithOrganization("acme"))

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "hi")), nil)
	require.NoError(t, err)
}

func TestComplete_ToolCallRoundTrip(t *testing.T) {
	calls := 0

	adapter := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		req := readBody(t, r)

		if calls == 1 {
			tools, ok := req["tools"].([]any)
			require.True(t, ok)
			require.Len(t, tools, 1)
			tool, _ := tools[0].(map[string]any)
			assert.Equal(t, "function", tool["type"])
			fn, _ := tool["function"].(map[string]any)
			assert.Equal(t, "search_internet", fn["name"])

			writeJSON(t, w, map[string]any{
				"choices": []map[string]any{{
					"message": map[string]any{
						"role":    "assistant",
						"content": nil,
						"tool_calls": []map[string]any{{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      "search_internet",
								"arguments": `{"search_query":"generative ai medicine"}`,
							},
						}},
					},
					"finish_reason": "tool_calls",
				}},
				"usage": map[string]any{"prompt_tokens": 15, "completion_tokens": 8},
			})
			return
		}

		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 3)

		assistant, _ := msgs[1].(map[string]any)
		assert.Nil(t, assistant["content"])
		assert.Len(t, assistant["tool_calls"], 1)

		last, _ := msgs[2].(map[string]any)
		assert.Equal(t, "tool", last["role"])
		assert.Equal(t, "call_1", last["tool_call_id"])
		assert.Equal(t, "Error: quota exceeded", last["content"])

		writeJSON(t, w, textReply("Research findings...", 25, 12))
	})

	tools := []toolbox.Tool{{
		Name:        "search_internet",
		Description: "Search the internet",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"search_query":{"type":"string"}}}`),
	}}

	c := chat.New(message.NewText("", role.User, "Research generative AI in medicine"))

	msg, err := adapter.Complete(context.Background(), c, tools)
	require.NoError(t, err)

	tcs := msg.ToolCalls()
	require.Len(t, tcs, 1)
	assert.Equal(t, "call_1", tcs[0].ID)
	assert.Equal(t, "search_internet", tcs[0].Name)
	assert.JSONEq(t, `{"search_query":"generative ai medicine"}`, tcs[0].Arguments)

	c.Append(msg)
	c.Append(message.New("", role.Tool, content.ToolResult{
		ToolCallID: "call_1",
		Content:    "quota exceeded",
		IsError:    true,
	}))

	msg, err = adapter.Complete(context.Background(), c, tools)
	require.NoError(t, err)
	assert.Equal(t, "Research findings...", msg.TextContent())

	total := adapter.Usage.Total()
	assert.Equal(t, 40, total.InputTokens)
	assert.Equal(t, 20, total.OutputTokens)
}

func TestComplete_EmptyChoices(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{},
			"usage":   map[string]any{"prompt_tokens": 5, "completion_tokens": 0},
		})
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestComplete_Refusal(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": nil, "refusal": "I can't help with that."},
				"finish_reason": "stop",
			}},
		})
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)
	require.ErrorIs(t, err, openai.ErrRefused)
}

func TestComplete_RateLimited(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)

	var rle *apiclient.RateLimitError
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2*time.Second, rle.RetryAfter)
}

func TestComplete_StatusError(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)

	var se *apiclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
}

func TestComplete_RecordsRateLimitHeaders(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("x-ratelimit-remaining-requests", "42")
		w.Header().Set("x-ratelimit-remaining-tokens", "9000")
		w.Header().Set("x-ratelimit-reset-requests", "1s")
		writeJSON(t, w, textReply("ok", 1, 1))
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)
	require.NoError(t, err)

	info := adapter.LastRateLimitInfo()
	require.NotNil(t, info)
	assert.Equal(t, 42, info.RemainingRequests)
	assert.Equal(t, 9000, info.RemainingTokens)
}

func TestComplete_UsagePerAgent(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, textReply("ok", 100, 10))
	})
	c := chat.New(message.NewText("", role.User, "Hi"))

	ctx := agentctx.WithAgentRole(context.Background(), "Senior Research Analyst")
	_, err := adapter.Complete(ctx, c, nil)
	require.NoError(t, err)
	_, err = adapter.Complete(ctx, c, nil)
	require.NoError(t, err)

	ctx = agentctx.WithAgentRole(context.Background(), "Content Writer")
	_, err = adapter.Complete(ctx, c, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]usage.TokenCount{
		"Senior Research Analyst": {InputTokens: 200, OutputTokens: 20},
		"Content Writer":          {InputTokens: 100, OutputTokens: 10},
	}, adapter.Usage.ByAgent())
}

func TestComplete_UnknownRole(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "narrator", "content": "hm"},
				"finish_reason": "stop",
			}},
		})
	})

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Hi")), nil)
	assert.ErrorContains(t, err, `openai: role: unknown role "narrator"`)
}

func TestComplete_LengthTruncated(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "# Article\n\nThe applications of Generative AI in medi"},
				"finish_reason": "length",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 300},
		})
	}, openai.WithMaxTokens(300))

	_, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Write the article.")), nil)
	require.ErrorIs(t, err, openai.ErrTruncated)
	assert.Contains(t, err.Error(), "max_tokens 300")

	total := adapter.Usage.Total()
	assert.Equal(t, 300, total.OutputTokens, "usage of the cut reply still counts")
}

func TestComplete_LengthWithToolCalls(t *testing.T) {
	adapter := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []map[string]any{{
						"id":       "call_1",
						"type":     "function",
						"function": map[string]any{"name": "search_internet", "arguments": `{"search_query":"ai"}`},
					}},
				},
				"finish_reason": "length",
			}},
		})
	})

	msg, err := adapter.Complete(context.Background(), chat.New(message.NewText("", role.User, "Research.")), nil)
	require.NoError(t, err)
	assert.Len(t, msg.ToolCalls(), 1)
}
