// Package modeladapter defines how the agents talk to an LLM.
//
// It contains:
//   - [Completer], the single call an agent needs, and the embeddable
//     [ModelAdapter] that concrete providers build on
//   - [RateLimitedCompleter], which throttles and retries any Completer
//   - [github.com/germanamz/contentcrew/pkg/modeladapter/usage]: token usage tracker
//
// Provider wire formats live in their own packages under pkg/providers.
package modeladapter
