// Package agent provides the role-playing agent: an LLM persona defined by a
// role, a goal and a backstory that answers a prompt by running a ReAct loop
// (reason, call tools, repeat) until it produces a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/chats/chat"
	"github.com/germanamz/contentcrew/pkg/chats/content"
	"github.com/germanamz/contentcrew/pkg/chats/message"
	"github.com/germanamz/contentcrew/pkg/chats/role"
	"github.com/germanamz/contentcrew/pkg/modeladapter"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
)

// DefaultMaxIterations bounds the ReAct loop when Options.MaxIterations is 0.
const DefaultMaxIterations = 20

// ErrMaxIterations is returned when the loop reaches MaxIterations without the
// model producing a final answer.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// StepKind identifies what happened in a loop step.
type StepKind string

const (
	StepToolCall   StepKind = "tool_call"
	StepToolResult StepKind = "tool_result"
	StepAnswer     StepKind = "answer"
)

// Step is one observable event of the ReAct loop.
type Step struct {
	Agent      string
	Kind       StepKind
	Iteration  int
	ToolCall   content.ToolCall   // Set for StepToolCall.
	ToolResult content.ToolResult // Set for StepToolResult.
	Text       string             // Final answer for StepAnswer.
}

// Observer receives steps as they happen. It is called synchronously from the
// loop and must not block.
type Observer func(ctx context.Context, step Step)

// Options configures an Agent.
type Options struct {
	MaxIterations int          // ReAct loop limit (0 = DefaultMaxIterations).
	Middleware    []Middleware // Applied around each Execute call.
	Observer      Observer     // Optional step observer.
}

// Agent is an LLM persona with tools. An Agent holds no conversation state:
// every Execute starts a fresh chat, so one Agent can serve many runs.
type Agent struct {
	role      string
	goal      string
	backstory string
	completer modeladapter.Completer
	toolboxes []*toolbox.ToolBox
	options   Options
}

// New creates an Agent.
func New(role, goal, backstory string, completer modeladapter.Completer, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	return &Agent{
		role:      role,
		goal:      goal,
		backstory: backstory,
		completer: completer,
		options:   opts,
	}
}

// Role returns the agent's role. It doubles as the agent's name.
func (a *Agent) Role() string { return a.role }

// Goal returns the agent's goal.
func (a *Agent) Goal() string { return a.goal }

// Backstory returns the agent's backstory.
func (a *Agent) Backstory() string { return a.backstory }

// Completer returns the agent's completer.
func (a *Agent) Completer() modeladapter.Completer { return a.completer }

// MaxIterations returns the effective loop limit.
func (a *Agent) MaxIterations() int { return a.options.MaxIterations }

// AddToolBoxes makes the tools of tbs available to the agent. On name clashes
// the toolbox added last wins.
func (a *Agent) AddToolBoxes(tbs ...*toolbox.ToolBox) {
	a.toolboxes = append(a.toolboxes, tbs...)
}

// Tools returns every tool the agent can call, sorted by name.
func (a *Agent) Tools() []toolbox.Tool {
	return a.toolbox().Tools()
}

// Observer returns the step observer, or nil.
func (a *Agent) Observer() Observer { return a.options.Observer }

// SetObserver replaces the step observer.
func (a *Agent) SetObserver(o Observer) { a.options.Observer = o }

// Interpolate returns a copy of the agent with {key} placeholders in its role,
// goal and backstory replaced by inputs. Unknown placeholders are left as is.
func (a *Agent) Interpolate(inputs map[string]string) *Agent {
	cp := *a
	cp.role = InterpolateText(a.role, inputs)
	cp.goal = InterpolateText(a.goal, inputs)
	cp.backstory = InterpolateText(a.backstory, inputs)
	cp.toolboxes = slices.Clone(a.toolboxes)
	cp.options.Middleware = slices.Clone(a.options.Middleware)
	return &cp
}

// InterpolateText replaces each {key} in text with inputs[key].
func InterpolateText(text string, inputs map[string]string) string {
	if len(inputs) == 0 || !strings.Contains(text, "{") {
		return text
	}

	pairs := make([]string, 0, len(inputs)*2)
	for _, k := range slices.Sorted(maps.Keys(inputs)) {
		pairs = append(pairs, "{"+k+"}", inputs[k])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// SystemPrompt returns the persona prompt sent as the first message.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s.", a.role)
	if a.backstory != "" {
		b.WriteString(" ")
		b.WriteString(a.backstory)
	}
	if a.goal != "" {
		b.WriteString("\nYour personal goal is: ")
		b.WriteString(a.goal)
	}
	return b.String()
}

// Execute answers prompt with a fresh conversation, applying middleware around
// the loop. The returned message is the model's final answer.
func (a *Agent) Execute(ctx context.Context, prompt string) (message.Message, error) {
	ctx = agentctx.WithAgentRole(ctx, a.role)

	var runner Runner = RunnerFunc(func(ctx context.Context) (message.Message, error) {
		return a.run(ctx, prompt)
	})

	// Reverse order so the first middleware is outermost.
	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx)
}

func (a *Agent) run(ctx context.Context, prompt string) (message.Message, error) {
	tb := a.toolbox()
	tools := tb.Tools()

	c := chat.New(
		message.NewText(a.role, role.System, a.SystemPrompt()),
		message.NewText("user", role.User, prompt),
	)

	for i := range a.options.MaxIterations {
		if err := ctx.Err(); err != nil {
			return message.Message{}, err
		}

		reply, err := a.completer.Complete(ctx, c, tools)
		if err != nil {
			return message.Message{}, err
		}

		reply.Sender = a.role
		c.Append(reply)

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			a.observe(ctx, Step{Kind: StepAnswer, Iteration: i, Text: reply.TextContent()})
			return reply, nil
		}

		for _, tc := range calls {
			a.observe(ctx, Step{Kind: StepToolCall, Iteration: i, ToolCall: tc})
			result := tb.Call(ctx, tc)
			a.observe(ctx, Step{Kind: StepToolResult, Iteration: i, ToolCall: tc, ToolResult: result})
			c.Append(message.New(a.role, role.Tool, result))
		}
	}

	return message.Message{}, fmt.Errorf("%w (%d, after %d tool calls)", ErrMaxIterations, a.options.MaxIterations, c.ToolCallCount())
}

func (a *Agent) observe(ctx context.Context, s Step) {
	if a.options.Observer == nil {
		return
	}
	s.Agent = a.role
	a.options.Observer(ctx, s)
}

// toolbox flattens the agent's toolboxes into one.
func (a *Agent) toolbox() *toolbox.ToolBox {
	tb := toolbox.New()
	for _, t := range a.toolboxes {
		tb.Merge(t)
	}
	return tb
}
