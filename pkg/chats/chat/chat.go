// Package chat holds the transcript an agent builds while working a task.
package chat

import (
	"github.com/germanamz/contentcrew/pkg/chats/content"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/chats/role"
)

// Chat is an ordered transcript. The zero value is empty and ready to use.
// It is not safe for concurrent use; each agent run owns its own Chat.
type Chat struct {
	messages []message.Message
}

// New starts a transcript with msgs.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

func (c *Chat) Append(msgs ...message.Message) {
	c.messages = append(c.messages, msgs...)
}

func (c *Chat) Len() int {
	return len(c.messages)
}

// At panics if i is out of range.
func (c *Chat) At(i int) message.Message {
	return c.messages[i]
}

// Messages returns a copy of the transcript.
func (c *Chat) Messages() []message.Message {
	return append([]message.Message(nil), c.messages...)
}

// SystemPrompt returns the text of the first system message, or "".
func (c *Chat) SystemPrompt() string {
	for _, m := range c.messages {
		if m.Role == role.System {
			return m.TextContent()
		}
	}
	return ""
}

// ToolCallCount counts the tool calls the assistant has made so far.
func (c *Chat) ToolCallCount() int {
	n := 0
	for _, m := range c.messages {
		if m.Role != role.Assistant {
			continue
		}
		for _, p := range m.Parts {
			if _, ok := p.(content.ToolCall); ok {
				n++
			}
		}
	}
	return n
}
