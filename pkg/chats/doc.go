// Package chats holds the conversation model the agents and the LLM adapter
// exchange.
//
// Sub-packages:
//   - [github.com/germanamz/contentcrew/pkg/chats/role]: who sent a message
//   - [github.com/germanamz/contentcrew/pkg/chats/content]: text, tool call and tool result parts
//   - [github.com/germanamz/contentcrew/pkg/chats/message]: a role plus its parts
//   - [github.com/germanamz/contentcrew/pkg/chats/chat]: an ordered, mutable transcript
//
// Nothing here talks to a provider; adapters translate to and from their wire
// formats.
package chats
