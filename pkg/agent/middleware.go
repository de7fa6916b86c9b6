package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/chats/message"
)

// ErrEmptyAnswer is returned by RequireText when the final answer has no text.
var ErrEmptyAnswer = errors.New("agent: empty final answer")

// Runner executes agent logic and returns the final message.
type Runner interface {
	Run(ctx context.Context) (message.Message, error)
}

// RunnerFunc adapts a plain function to the Runner interface.
type RunnerFunc func(ctx context.Context) (message.Message, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (message.Message, error) {
	return f(ctx)
}

// Middleware wraps a Runner, returning a new Runner with added behaviour.
type Middleware func(next Runner) Runner

// Timeout bounds each Execute call with a deadline. Zero disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		if d <= 0 {
			return next
		}
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			return next.Run(ctx)
		})
	}
}

// Recovery converts panics into errors.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (msg message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					msg = message.Message{}
					err = fmt.Errorf("agent panicked: %v", r)
				}
			}()

			return next.Run(ctx)
		})
	}
}

// Logger logs the start, duration and outcome of each Execute call, tagged
// with the run ID when the context carries one. An empty name falls back to
// the executing agent's role.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			agentName := name
			if agentName == "" {
				agentName = agentctx.AgentRoleFromContext(ctx)
			}
			l := log.With("agent", agentName)
			if id := agentctx.RunIDFromContext(ctx); id != "" {
				l = l.With("run_id", id)
			}

			l.InfoContext(ctx, "agent started")
			start := time.Now()

			msg, err := next.Run(ctx)

			duration := time.Since(start)
			if err != nil {
				l.ErrorContext(ctx, "agent finished with error", "duration", duration, "error", err)
			} else {
				l.InfoContext(ctx, "agent finished", "duration", duration, "chars", len(msg.TextContent()))
			}

			return msg, err
		})
	}
}

// OutputGuardrail validates the final message. If check fails, its error is
// returned instead of the message.
func OutputGuardrail(check func(message.Message) error) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			msg, err := next.Run(ctx)
			if err != nil {
				return msg, err
			}

			if checkErr := check(msg); checkErr != nil {
				return message.Message{}, checkErr
			}

			return msg, nil
		})
	}
}

// RequireText is an OutputGuardrail check that rejects blank answers.
func RequireText(m message.Message) error {
	if strings.TrimSpace(m.TextContent()) == "" {
		return ErrEmptyAnswer
	}
	return nil
}
