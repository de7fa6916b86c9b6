// Package tools holds the tools the research agent can call.
//
// Sub-packages:
//   - [github.com/germanamz/contentcrew/pkg/tools/toolbox]: Tool type and ToolBox for registering, listing and calling tools
//   - [github.com/germanamz/contentcrew/pkg/tools/serper]: web search backed by the Serper API
//   - [github.com/germanamz/contentcrew/pkg/tools/mcpclient]: MCP client exposing external MCP server tools as toolbox tools
//   - [github.com/germanamz/contentcrew/pkg/tools/mcpserver]: MCP server exposing toolbox tools over the MCP protocol
//
// toolbox is the foundation layer; the other packages depend on it but not on
// each other.
package tools
