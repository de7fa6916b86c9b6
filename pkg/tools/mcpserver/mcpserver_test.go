package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func generateTool() toolbox.Tool {
	return toolbox.Tool{
		Name:        "generate_content",
		Description: "Research a topic and write an article about it",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"topic":{"type":"string"}}}`),
		Handler:     echoHandler,
	}
}

// setupTestClient runs s over in-memory transports and returns a connected
// SDK client session.
func setupTestClient(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- s.server.Run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session
}

func TestListTools(t *testing.T) {
	s := New("contentcrew", "1.0.0", Options{})
	s.Register(generateTool(), toolbox.Tool{Name: "bare", Description: "No schema", Handler: echoHandler})

	session := setupTestClient(t, s)

	result, err := session.ListTools(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tools, 2)

	byName := make(map[string]*mcp.Tool, len(result.Tools))
	for _, tool := range result.Tools {
		byName[tool.Name] = tool
	}
	assert.Equal(t, "Research a topic and write an article about it", byName["generate_content"].Description)
	assert.Contains(t, byName, "bare")
}

func TestInstructions(t *testing.T) {
	s := New("contentcrew", "1.0.0", Options{Instructions: "Call generate_content with a topic."})
	session := setupTestClient(t, s)

	init := session.InitializeResult()
	require.NotNil(t, init)
	assert.Equal(t, "Call generate_content with a topic.", init.Instructions)
	assert.Equal(t, "contentcrew", init.ServerInfo.Name)
}

func TestToolCallSuccess(t *testing.T) {
	s := New("contentcrew", "1.0.0", Options{})
	s.Register(generateTool())
	session := setupTestClient(t, s)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_content",
		Arguments: map[string]any{"topic": "robotics"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.JSONEq(t, `{"topic":"robotics"}`, tc.Text)
}

func TestToolCallHandlerError(t *testing.T) {
	s := New("contentcrew", "1.0.0", Options{})
	s.Register(toolbox.Tool{
		Name:        "fail",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(context.Context, json.RawMessage) (string, error) {
			return "", errors.New("search api key is not set")
		},
	})
	session := setupTestClient(t, s)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "fail",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Equal(t, "search api key is not set", tc.Text)
}

func TestToolCallNotFound(t *testing.T) {
	session := setupTestClient(t, New("contentcrew", "1.0.0", Options{}))

	_, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "missing",
		Arguments: map[string]any{},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestServeCancelled(t *testing.T) {
	s := New("contentcrew", "1.0.0", Options{})
	serverTransport, _ := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.server.Run(ctx, serverTransport)
	assert.ErrorIs(t, err, context.Canceled)
}
