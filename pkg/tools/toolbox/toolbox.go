package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/germanamz/contentcrew/pkg/chats/content"
)

// ToolBox holds a named set of tools. Agents use it to advertise tools to the
// model and to execute the tool calls the model makes.
type ToolBox struct {
	tools map[string]Tool
}

// New creates a ToolBox, optionally pre-populated with tools.
func New(tools ...Tool) *ToolBox {
	tb := &ToolBox{tools: make(map[string]Tool, len(tools))}
	tb.Register(tools...)
	return tb
}

// Register adds tools to the ToolBox. A tool with an existing name replaces
// the previous one.
func (tb *ToolBox) Register(tools ...Tool) {
	for _, t := range tools {
		tb.tools[t.Name] = t
	}
}

// Get returns a tool by name.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	t, ok := tb.tools[name]
	return t, ok
}

// Merge registers all tools from other into tb.
func (tb *ToolBox) Merge(other *ToolBox) {
	if other == nil {
		return
	}
	for _, t := range other.tools {
		tb.tools[t.Name] = t
	}
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int { return len(tb.tools) }

// Tools returns all registered tools sorted by name, so requests built from
// the same toolbox are identical between calls.
func (tb *ToolBox) Tools() []Tool {
	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	slices.SortFunc(result, func(a, b Tool) int { return strings.Compare(a.Name, b.Name) })
	return result
}

// Call executes a tool call. An unknown tool, a missing handler or a handler
// error all produce a result with IsError set; Call never fails.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	t, ok := tb.tools[tc.Name]
	if !ok || t.Handler == nil {
		return content.ErrorResult(tc.ID, fmt.Errorf("tool not found: %s", tc.Name))
	}

	result, err := t.Handler(ctx, json.RawMessage(tc.Arguments))
	if err != nil {
		return content.ErrorResult(tc.ID, err)
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Content:    result,
	}
}
