// Package providers holds the concrete LLM adapters. Each sub-package
// implements [github.com/germanamz/contentcrew/pkg/modeladapter.Completer]
// by embedding [github.com/germanamz/contentcrew/pkg/modeladapter.ModelAdapter].
//
// Only [github.com/germanamz/contentcrew/pkg/providers/openai] ships today;
// the engine picks an adapter by the provider kind in its config.
package providers
