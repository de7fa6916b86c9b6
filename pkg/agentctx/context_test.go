package agentctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunIDRoundTrip(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	assert.Equal(t, "run-1", RunIDFromContext(ctx))
}

func TestAgentRoleRoundTrip(t *testing.T) {
	ctx := WithAgentRole(context.Background(), "Content Writer")
	assert.Equal(t, "Content Writer", AgentRoleFromContext(ctx))
}

func TestTaskNameOverwrite(t *testing.T) {
	ctx := WithTaskName(context.Background(), "research")
	ctx = WithTaskName(ctx, "write")
	assert.Equal(t, "write", TaskNameFromContext(ctx))
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))
	assert.Empty(t, AgentRoleFromContext(ctx))
	assert.Empty(t, TaskNameFromContext(ctx))
}

func TestKeysIndependent(t *testing.T) {
	ctx := WithRunID(context.Background(), "run-1")
	ctx = WithAgentRole(ctx, "Senior Research Analyst")

	assert.Equal(t, "run-1", RunIDFromContext(ctx))
	assert.Equal(t, "Senior Research Analyst", AgentRoleFromContext(ctx))
	assert.Empty(t, TaskNameFromContext(ctx))
}
