// Package engine is the composition root. It turns a Config into a ready
// pipeline: the LLM provider, the search tool, MCP tools, the crew and the run
// history. Frontends (CLI, web, MCP) call Generate and observe progress
// through the EventBus.
package engine
