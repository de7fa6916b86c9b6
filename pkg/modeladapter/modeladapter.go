package modeladapter

import (
	"context"
	"errors"

	"github.com/germanamz/contentcrew/pkg/apiclient"
	"github.com/germanamz/contentcrew/pkg/chats/chat"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/modeladapter/usage"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

// Completer sends a conversation to an LLM and returns the assistant's reply.
// The tools parameter declares which tools are available for this call.
type Completer interface {
	Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error)
}

// UsageReporter provides token usage information from a completer.
// Completers that embed ModelAdapter implement this interface automatically.
type UsageReporter interface {
	UsageTracker() *usage.Tracker
	ModelName() string
}

// RateLimitInfoReporter provides the most recently observed rate limit info
// from a provider's response headers.
type RateLimitInfoReporter interface {
	LastRateLimitInfo() *apiclient.RateLimitInfo
}

// ModelAdapter holds shared state for LLM provider implementations. Embed it in
// concrete provider structs to get HTTP helpers, auth and usage tracking.
// Concrete types define their own Complete method to shadow the default stub.
type ModelAdapter struct {
	apiclient.Client

	Name        string        // Model identifier (e.g. "gpt-4o-mini").
	Temperature float64       // Sampling temperature; 0 leaves the provider default.
	MaxTokens   int           // Maximum tokens in the response.
	Usage       usage.Tracker // Token usage tracker.
}

// UsageTracker returns the adapter's token usage tracker.
func (a *ModelAdapter) UsageTracker() *usage.Tracker { return &a.Usage }

// ModelName returns the configured model identifier.
func (a *ModelAdapter) ModelName() string { return a.Name }

// Complete is a stub. Providers that embed ModelAdapter define their own.
func (a *ModelAdapter) Complete(_ context.Context, _ *chat.Chat, _ []toolbox.Tool) (message.Message, error) {
	return message.Message{}, errors.New("adapter: Complete not implemented")
}
