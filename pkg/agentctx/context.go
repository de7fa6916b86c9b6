// Package agentctx carries run metadata (which run, which agent, which task)
// through context so packages can tag logs and events without importing each
// other.
package agentctx

import "context"

type (
	runIDKey     struct{}
	agentRoleKey struct{}
	taskNameKey  struct{}
)

// WithRunID returns a context carrying the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run identifier, or "" if none is set.
func RunIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey{}).(string)
	return v
}

// WithAgentRole returns a context carrying the role of the executing agent.
func WithAgentRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, agentRoleKey{}, role)
}

// AgentRoleFromContext returns the executing agent's role, or "".
func AgentRoleFromContext(ctx context.Context) string {
	v, _ := ctx.Value(agentRoleKey{}).(string)
	return v
}

// WithTaskName returns a context carrying the name of the running task.
func WithTaskName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, taskNameKey{}, name)
}

// TaskNameFromContext returns the running task's name, or "".
func TaskNameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(taskNameKey{}).(string)
	return v
}
