// Package content defines the parts a chat message is made of.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is model or user prose.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall asks for a tool to run. Arguments is the raw JSON the model
// produced; the tool's handler decodes it.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult answers the ToolCall with the same ID.
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

func (tr ToolResult) PartKind() string { return "tool_result" }

// ErrorResult reports a failed tool call back to the model.
func ErrorResult(callID string, err error) ToolResult {
	return ToolResult{ToolCallID: callID, Content: err.Error(), IsError: true}
}

// Text is what the model reads: the content, prefixed with "Error: " when the
// call failed.
func (tr ToolResult) Text() string {
	if tr.IsError {
		return "Error: " + tr.Content
	}
	return tr.Content
}
