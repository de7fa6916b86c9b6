// Package crew runs a fixed list of tasks, each assigned to an agent, strictly
// in order. The output of every finished task is handed to the tasks after it
// as context, and the last task's output is the crew's result.
package crew

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/germanamz/contentcrew/pkg/agent"
	"github.com/germanamz/contentcrew/pkg/agentctx"
)

var (
	// ErrNoTasks is returned by New when the crew has nothing to do.
	ErrNoTasks = errors.New("crew: at least one task is required")
	// ErrNoAgent is returned by New when a task has no agent assigned.
	ErrNoAgent = errors.New("crew: task has no agent")
	// ErrUnknownAgent is returned by New when a task's agent is not a crew member.
	ErrUnknownAgent = errors.New("crew: task agent is not a member of the crew")
)

// Task is a unit of work for one agent. Description and ExpectedOutput may
// contain {key} placeholders filled from the Kickoff inputs.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *agent.Agent
}

// Prompt builds the user prompt for the task. contextText holds the outputs
// of earlier tasks and is omitted when empty.
func (t Task) Prompt(contextText string) string {
	var b strings.Builder
	b.WriteString("Current Task: ")
	b.WriteString(t.Description)

	if t.ExpectedOutput != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(t.ExpectedOutput)
		b.WriteString("\nyou MUST return the actual complete content as the final answer, not a summary.")
	}

	if contextText != "" {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(contextText)
	}

	b.WriteString("\n\nBegin! This is VERY important to you, use the tools available and give your best Final Answer, your job depends on it!")
	return b.String()
}

func (t Task) interpolate(inputs map[string]string) Task {
	t.Description = agent.InterpolateText(t.Description, inputs)
	t.ExpectedOutput = agent.InterpolateText(t.ExpectedOutput, inputs)
	return t
}

// TaskOutput is the result of one finished task.
type TaskOutput struct {
	Name        string
	Description string
	Agent       string
	Raw         string
	Duration    time.Duration
}

// Output is the result of a Kickoff.
type Output struct {
	Raw   string       // Output of the last task.
	Tasks []TaskOutput // One entry per task, in order.
}

// TaskError reports which task stopped the pipeline.
type TaskError struct {
	Index int
	Task  string
	Agent string
	Err   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("crew: task %d (%s) by %s: %v", e.Index+1, e.Task, e.Agent, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Callbacks observe a Kickoff. Any of them may be nil. They run on the
// Kickoff goroutine and must not block.
type Callbacks struct {
	TaskStart func(ctx context.Context, index int, task Task)
	TaskEnd   func(ctx context.Context, index int, out TaskOutput)
	Step      agent.Observer
}

// Options configures a Crew.
type Options struct {
	Callbacks Callbacks
}

// Crew is a sequential pipeline of tasks.
type Crew struct {
	agents []*agent.Agent
	tasks  []Task
	opts   Options
}

// New validates and assembles a crew.
func New(agents []*agent.Agent, tasks []Task, opts Options) (*Crew, error) {
	if len(tasks) == 0 {
		return nil, ErrNoTasks
	}

	for i, t := range tasks {
		if t.Agent == nil {
			return nil, fmt.Errorf("%w: task %d (%s)", ErrNoAgent, i+1, taskName(i, t))
		}
		if !slices.Contains(agents, t.Agent) {
			return nil, fmt.Errorf("%w: task %d (%s) uses %q", ErrUnknownAgent, i+1, taskName(i, t), t.Agent.Role())
		}
	}

	return &Crew{
		agents: slices.Clone(agents),
		tasks:  slices.Clone(tasks),
		opts:   opts,
	}, nil
}

// Agents returns the crew members.
func (c *Crew) Agents() []*agent.Agent { return slices.Clone(c.agents) }

// Tasks returns the tasks in execution order.
func (c *Crew) Tasks() []Task { return slices.Clone(c.tasks) }

// Kickoff runs every task in order. Inputs fill {key} placeholders in task
// texts and agent personas. The first failing task aborts the run with a
// *TaskError.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (Output, error) {
	members := make(map[*agent.Agent]*agent.Agent, len(c.agents))
	for _, a := range c.agents {
		members[a] = c.prepare(a, inputs)
	}

	out := Output{Tasks: make([]TaskOutput, 0, len(c.tasks))}
	var previous []string

	for i, original := range c.tasks {
		task := original.interpolate(inputs)
		a := members[original.Agent]
		task.Agent = a
		name := taskName(i, task)

		if err := ctx.Err(); err != nil {
			return out, &TaskError{Index: i, Task: name, Agent: a.Role(), Err: err}
		}

		if cb := c.opts.Callbacks.TaskStart; cb != nil {
			cb(ctx, i, task)
		}

		start := time.Now()
		taskCtx := agentctx.WithTaskName(ctx, name)
		reply, err := a.Execute(taskCtx, task.Prompt(strings.Join(previous, "\n\n")))
		if err != nil {
			return out, &TaskError{Index: i, Task: name, Agent: a.Role(), Err: err}
		}

		to := TaskOutput{
			Name:        name,
			Description: task.Description,
			Agent:       a.Role(),
			Raw:         reply.TextContent(),
			Duration:    time.Since(start),
		}
		out.Tasks = append(out.Tasks, to)
		out.Raw = to.Raw
		previous = append(previous, to.Raw)

		if cb := c.opts.Callbacks.TaskEnd; cb != nil {
			cb(ctx, i, to)
		}
	}

	return out, nil
}

// prepare returns the interpolated copy of a that reports steps to both its
// own observer and the crew's Step callback.
func (c *Crew) prepare(a *agent.Agent, inputs map[string]string) *agent.Agent {
	cp := a.Interpolate(inputs)

	step := c.opts.Callbacks.Step
	if step == nil {
		return cp
	}

	own := cp.Observer()
	cp.SetObserver(func(ctx context.Context, s agent.Step) {
		if own != nil {
			own(ctx, s)
		}
		step(ctx, s)
	})
	return cp
}

func taskName(i int, t Task) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task_%d", i+1)
}
