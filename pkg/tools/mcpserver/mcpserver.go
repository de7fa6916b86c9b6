// Package mcpserver exposes toolbox tools to MCP clients.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Options configures a Server.
type Options struct {
	// Instructions is sent to clients during initialization as a usage hint.
	Instructions string
}

// Server serves toolbox tools over the MCP protocol.
type Server struct {
	server *mcp.Server
}

// New creates a Server that announces itself with name and version.
func New(name, version string, opts Options) *Server {
	var sdkOpts *mcp.ServerOptions
	if opts.Instructions != "" {
		sdkOpts = &mcp.ServerOptions{Instructions: opts.Instructions}
	}

	return &Server{
		server: mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, sdkOpts),
	}
}

// Register adds tools to the server. Tools without a schema accept any object.
func (s *Server) Register(tools ...toolbox.Tool) {
	for _, t := range tools {
		schema := t.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		s.server.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		}, handler(t.Handler))
	}
}

// ServeStdio serves on the process's stdin and stdout until ctx is cancelled
// or the client disconnects.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Serve serves over an arbitrary reader and writer pair.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

// handler adapts a toolbox handler. Handler errors are reported as tool
// results with IsError set so the client's model can see them.
func handler(h toolbox.Handler) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.Params.Arguments
		if args == nil {
			args = json.RawMessage("{}")
		}

		result, err := h(ctx, args)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				IsError: true,
			}, nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: result}},
		}, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
