// Package mcpclient connects to external MCP servers and exposes their tools
// as toolbox tools, so the research agent can use them next to web search.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP servers during initialization.
var Version = "0.1.0"

// Server describes how to reach an MCP server: either a command spawned over
// stdio or a streamable HTTP endpoint.
type Server struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// Client is a connected MCP session.
type Client struct {
	name    string
	session *mcp.ClientSession
}

// Connect starts or dials the server and completes the MCP handshake.
func Connect(ctx context.Context, srv Server) (*Client, error) {
	var transport mcp.Transport
	switch {
	case srv.Command != "":
		cmd := exec.Command(srv.Command, srv.Args...) //nolint:gosec // command comes from the operator's config
		cmd.Env = mergeEnv(os.Environ(), srv.Env)
		transport = &mcp.CommandTransport{Command: cmd}
	case srv.URL != "":
		transport = &mcp.StreamableClientTransport{Endpoint: srv.URL}
	default:
		return nil, fmt.Errorf("mcpclient: server %q: command or url is required", srv.Name)
	}

	c, err := connect(ctx, srv.Name, transport)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: server %q: %w", srv.Name, err)
	}
	return c, nil
}

// connect is split out so tests can pass an in-memory transport.
func connect(ctx context.Context, name string, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "contentcrew",
		Version: Version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	return &Client{name: name, session: session}, nil
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// ToolBox lists the server's tools and returns them in a ToolBox. Each tool's
// handler calls back into the session.
func (c *Client) ToolBox(ctx context.Context) (*toolbox.ToolBox, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: list tools: %w", c.name, err)
	}

	tb := toolbox.New()
	for _, sdkTool := range result.Tools {
		schema, err := json.Marshal(sdkTool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: %s: tool %q schema: %w", c.name, sdkTool.Name, err)
		}

		name := sdkTool.Name
		tb.Register(toolbox.Tool{
			Name:        name,
			Description: sdkTool.Description,
			InputSchema: schema,
			Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
				return c.CallTool(ctx, name, input)
			},
		})
	}

	return tb, nil
}

// CallTool calls a named tool with JSON arguments and returns its text output.
// A result flagged as an error by the server is returned as a Go error.
func (c *Client) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", fmt.Errorf("mcpclient: %s: arguments: %w", name, err)
		}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcpclient: %s: call: %w", name, err)
	}

	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if result.IsError {
		return "", errors.New(text)
	}

	return text, nil
}

// Close ends the session. For command servers the SDK also stops the process.
func (c *Client) Close() error {
	return c.session.Close()
}

// CloseAll closes every client and joins the errors.
func CloseAll(clients []*Client) error {
	var errs []error
	for _, c := range clients {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mcpclient: %s: close: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := append([]string(nil), base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
