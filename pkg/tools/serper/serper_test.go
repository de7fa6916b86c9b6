package serper_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/chats/content"
	"github.com/germanamz/contentcrew/pkg/tools/serper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func organic(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range n {
		out[i] = map[string]any{
			"title":    fmt.Sprintf("Result %d", i+1),
			"link":     fmt.Sprintf("https://example.com/%d", i+1),
			"snippet":  fmt.Sprintf("Snippet %d", i+1),
			"position": i + 1,
		}
	}
	return out
}

func newTestServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSearch_Request(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "serper-key", r.Header.Get("X-API-KEY"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "generative ai in medicine", body["q"])
		assert.InDelta(t, 3, body["num"], 1e-9)

		_ = json.NewEncoder(w).Encode(map[string]any{"organic": organic(5)})
	})

	c := serper.New("serper-key", serper.WithBaseURL(url+"/"), serper.WithNumResults(3))
	resp, err := c.Search(context.Background(), "  generative ai in medicine ")

	require.NoError(t, err)
	require.Len(t, resp.Organic, 3)
	assert.Equal(t, "Result 1", resp.Organic[0].Title)
}

func TestSearch_EmptyQuery(t *testing.T) {
	c := serper.New("key")
	_, err := c.Search(context.Background(), "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestSearch_MissingKey(t *testing.T) {
	c := serper.New("")
	_, err := c.Search(context.Background(), "ai")
	require.ErrorIs(t, err, serper.ErrMissingAPIKey)
}

func TestSearch_StatusError(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Unauthorized."}`))
	})

	_, err := serper.New("bad", serper.WithBaseURL(url)).Search(context.Background(), "ai")

	var se *apiclient.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}

func TestNew_Defaults(t *testing.T) {
	c := serper.New("key", serper.WithNumResults(0))
	assert.Equal(t, serper.DefaultNumResults, c.NumResults())
}

func TestTool_Call(t *testing.T) {
	url := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"organic": organic(2)})
	})

	tb := serper.New("key", serper.WithBaseURL(url)).ToolBox()
	tool, ok := tb.Get(serper.ToolName)
	require.True(t, ok)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
	assert.Equal(t, []any{"search_query"}, schema["required"])

	result := tb.Call(context.Background(), content.ToolCall{
		ID:        "c1",
		Name:      serper.ToolName,
		Arguments: `{"search_query":"ai"}`,
	})

	assert.False(t, result.IsError)
	assert.Equal(t,
		"Search results:\nTitle: Result 1\nLink: https://example.com/1\nSnippet: Snippet 1\n---\nTitle: Result 2\nLink: https://example.com/2\nSnippet: Snippet 2",
		result.Content,
	)
}

func TestTool_BadInput(t *testing.T) {
	tb := serper.New("key").ToolBox()

	result := tb.Call(context.Background(), content.ToolCall{ID: "c1", Name: serper.ToolName, Arguments: `{oops`})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "search_internet")

	result = tb.Call(context.Background(), content.ToolCall{ID: "c2", Name: serper.ToolName, Arguments: `{}`})
	assert.True(t, result.IsError)
}

func TestFormat_AnswerBoxAndKnowledgeGraph(t *testing.T) {
	var resp serper.Response
	require.NoError(t, json.Unmarshal([]byte(`{
		"answerBox": {"snippet": "AI assists diagnosis."},
		"knowledgeGraph": {"title": "Generative AI", "type": "Technology", "description": "Models that create content."},
		"organic": []
	}`), &resp))

	assert.Equal(t,
		"Answer: AI assists diagnosis.\n\nKnowledge Graph: Generative AI (Technology)\nModels that create content.\n\nNo results found.",
		serper.Format(&resp),
	)
}
