package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/contentcrew/pkg/agent"
	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/crew"
	"github.com/germanamz/contentcrew/pkg/history"
	"github.com/germanamz/contentcrew/pkg/modeladapter"
	"github.com/germanamz/contentcrew/pkg/modeladapter/usage"
	"github.com/germanamz/contentcrew/pkg/tools/mcpclient"
	"github.com/germanamz/contentcrew/pkg/tools/serper"
	"github.com/germanamz/contentcrew/pkg/tools/toolbox"
	"github.com/google/uuid"
)

// ErrMissingAPIKey is returned by Generate when a required API key is unset.
var ErrMissingAPIKey = errors.New("engine: missing api key")

// GenerateToolName is the name of the tool returned by Engine.Tool.
const GenerateToolName = "generate_content"

// Result is the outcome of a successful Generate call.
type Result struct {
	RunID    string
	Params   content.Params
	Content  string
	FileName string
	Tasks    []crew.TaskOutput
	Usage    usage.TokenCount
	Model    string
	Started  time.Time
	Duration time.Duration

	// AgentUsage splits Usage by agent role.
	AgentUsage map[string]usage.TokenCount
}

// Option customises an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for engine and agent logs.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine runs the content pipeline for any number of concurrent callers.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	events     *EventBus
	history    *history.Store
	mcpClients []*mcpclient.Client
	mcpTools   *toolbox.ToolBox
	now        func() time.Time
}

// New validates cfg, connects the configured MCP servers and opens the run
// history.
func New(ctx context.Context, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		log:      slog.Default(),
		events:   NewEventBus(),
		mcpTools: toolbox.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, mc := range cfg.MCPServers {
		client, err := mcpclient.Connect(ctx, mcpclient.Server{
			Name:    mc.Name,
			Command: mc.Command,
			Args:    mc.Args,
			Env:     mc.Env,
			URL:     mc.URL,
		})
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.mcpClients = append(e.mcpClients, client)

		tb, err := client.ToolBox(ctx)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.mcpTools.Merge(tb)
		e.log.Debug("mcp server connected", "server", mc.Name, "tools", tb.Len())
	}

	if cfg.History.Enabled {
		store, err := history.Open(ctx, cfg.History.Path)
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.history = store
	}

	return e, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// History returns the run store, or nil when history is disabled.
func (e *Engine) History() *history.Store { return e.history }

// Close disconnects MCP servers and closes the history store.
func (e *Engine) Close() error {
	var errs []error
	if err := mcpclient.CloseAll(e.mcpClients); err != nil {
		errs = append(errs, err)
	}
	e.mcpClients = nil

	if e.history != nil {
		if err := e.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("engine: close history: %w", err))
		}
		e.history = nil
	}
	return errors.Join(errs...)
}

// Generate researches params.Topic and writes an article about it. The run ID
// is taken from ctx (see agentctx.WithRunID) or generated.
func (e *Engine) Generate(ctx context.Context, params content.Params) (Result, error) {
	params = params.Normalize()
	if err := params.Validate(); err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	if missing := e.cfg.MissingSecrets(); len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingAPIKey, strings.Join(missing, ", "))
	}

	runID := agentctx.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = agentctx.WithRunID(ctx, runID)
	}

	res := Result{
		RunID:    runID,
		Params:   params,
		FileName: content.FileName(params.Topic),
		Model:    e.cfg.Provider.Model,
		Started:  e.now(),
	}
	log := e.log.With("run_id", runID)

	e.publish(ctx, EventRunStart, "", "", RunStartData{
		Topic:       params.Topic,
		Temperature: params.Temperature,
		NumResults:  params.NumResults,
		Model:       res.Model,
	})
	log.InfoContext(ctx, "generation started", "topic", params.Topic, "temperature", params.Temperature, "num_results", params.NumResults)

	out, llm, err := e.kickoff(ctx, params)
	res.Duration = e.now().Sub(res.Started)
	if ur, ok := llm.(modeladapter.UsageReporter); ok {
		res.Usage = ur.UsageTracker().Total()
		res.AgentUsage = ur.UsageTracker().ByAgent()
		if name := ur.ModelName(); name != "" {
			res.Model = name
		}
	}
	res.Tasks = out.Tasks

	if err != nil {
		log.ErrorContext(ctx, "generation failed", "error", err, "duration", res.Duration)
		e.publish(ctx, EventError, "", "", ErrorData{Error: err.Error()})
		e.record(ctx, res, err)
		return res, err
	}

	res.Content = out.Raw
	log.InfoContext(ctx, "generation finished",
		"duration", res.Duration,
		"input_tokens", res.Usage.InputTokens,
		"output_tokens", res.Usage.OutputTokens,
	)
	e.record(ctx, res, nil)
	e.publish(ctx, EventRunEnd, "", "", RunEndData{
		FileName:     res.FileName,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		Duration:     res.Duration,
	})

	return res, nil
}

// kickoff builds a run-scoped completer, search tool and crew and runs it.
// The completer is returned even on failure so usage can be reported.
func (e *Engine) kickoff(ctx context.Context, params content.Params) (crew.Output, modeladapter.Completer, error) {
	pc := e.cfg.Provider
	pc.Temperature = params.Temperature

	llm, err := buildCompleter(pc)
	if err != nil {
		return crew.Output{}, nil, err
	}

	search := serper.New(e.cfg.Search.APIKey,
		serper.WithBaseURL(e.cfg.Search.BaseURL),
		serper.WithNumResults(params.NumResults),
	).ToolBox()
	search.Merge(e.mcpTools)

	cr, err := content.NewCrew(llm, search, content.Options{
		Agent: agent.Options{
			MaxIterations: e.cfg.Crew.MaxIterations,
			Middleware: []agent.Middleware{
				agent.Recovery(),
				agent.Logger(e.log, ""),
				agent.Timeout(e.cfg.taskTimeout()),
				agent.OutputGuardrail(agent.RequireText),
			},
		},
		Callbacks: e.callbacks(),
	})
	if err != nil {
		return crew.Output{}, llm, fmt.Errorf("engine: %w", err)
	}

	out, err := cr.Kickoff(ctx, params.Inputs())
	if err != nil {
		return out, llm, fmt.Errorf("engine: %w", err)
	}
	return out, llm, nil
}

func (e *Engine) callbacks() crew.Callbacks {
	return crew.Callbacks{
		TaskStart: func(ctx context.Context, i int, t crew.Task) {
			e.publish(ctx, EventTaskStart, t.Agent.Role(), t.Name, TaskStartData{Index: i, Description: t.Description})
		},
		TaskEnd: func(ctx context.Context, i int, out crew.TaskOutput) {
			e.publish(ctx, EventTaskEnd, out.Agent, out.Name, TaskEndData{Index: i, Chars: len(out.Raw), Duration: out.Duration})
		},
		Step: func(ctx context.Context, s agent.Step) {
			task := agentctx.TaskNameFromContext(ctx)
			switch s.Kind {
			case agent.StepToolCall:
				e.publish(ctx, EventToolCall, s.Agent, task, ToolData{Tool: s.ToolCall.Name, Arguments: s.ToolCall.Arguments})
			case agent.StepToolResult:
				e.publish(ctx, EventToolResult, s.Agent, task, ToolData{
					Tool:    s.ToolCall.Name,
					Result:  s.ToolResult.Content,
					IsError: s.ToolResult.IsError,
				})
			case agent.StepAnswer:
			}
		},
	}
}

func (e *Engine) publish(ctx context.Context, kind EventKind, agentRole, task string, data any) {
	e.events.Publish(Event{
		Kind:      kind,
		RunID:     agentctx.RunIDFromContext(ctx),
		Agent:     agentRole,
		Task:      task,
		Timestamp: e.now(),
		Data:      data,
	})
}

// record stores the run in history. Failures are logged, never returned: a
// generated article is still delivered when the log cannot be written.
func (e *Engine) record(ctx context.Context, res Result, runErr error) {
	if e.history == nil {
		return
	}

	rec := history.Record{
		ID:           res.RunID,
		Topic:        res.Params.Topic,
		Temperature:  res.Params.Temperature,
		NumResults:   res.Params.NumResults,
		Model:        res.Model,
		Status:       history.StatusSucceeded,
		Content:      res.Content,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
		CreatedAt:    res.Started,
		Duration:     res.Duration,
	}
	if runErr != nil {
		rec.Status = history.StatusFailed
		rec.Error = runErr.Error()
	}
	for _, t := range res.Tasks {
		rec.Tasks = append(rec.Tasks, history.TaskRecord{
			Name:     t.Name,
			Agent:    t.Agent,
			Output:   t.Raw,
			Duration: t.Duration,
		})
	}

	// The caller's context may already be cancelled; the record is still worth keeping.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := e.history.Save(saveCtx, rec); err != nil {
		e.log.WarnContext(ctx, "could not record run", "run_id", res.RunID, "error", err)
	}
}

type generateInput struct {
	Topic       string   `json:"topic"`
	Temperature *float64 `json:"temperature"`
	NumResults  *int     `json:"num_results"`
}

// Tool exposes Generate as a toolbox tool, for serving over MCP. Omitted
// parameters take their DefaultParams values.
func (e *Engine) Tool() toolbox.Tool {
	def := content.DefaultParams()

	schema := fmt.Sprintf(`{"type":"object","properties":{`+
		`"topic":{"type":"string","description":"Topic to research and write about"},`+
		`"temperature":{"type":"number","minimum":%.1f,"maximum":%.1f,"description":"LLM temperature (default %.1f)"},`+
		`"num_results":{"type":"integer","minimum":%d,"maximum":%d,"description":"Number of search results (default %d)"}`+
		`},"required":["topic"]}`,
		content.MinTemperature, content.MaxTemperature, def.Temperature,
		content.MinNumResults, content.MaxNumResults, def.NumResults,
	)

	return toolbox.Tool{
		Name:        GenerateToolName,
		Description: "Research a topic on the web and write a detailed markdown article about it.",
		InputSchema: json.RawMessage(schema),
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			in, err := toolbox.DecodeInput[generateInput](input)
			if err != nil {
				return "", fmt.Errorf("%s: %w", GenerateToolName, err)
			}

			params := content.Params{Topic: in.Topic, Temperature: def.Temperature, NumResults: def.NumResults}
			if in.Temperature != nil {
				params.Temperature = *in.Temperature
			}
			if in.NumResults != nil {
				params.NumResults = *in.NumResults
			}

			res, err := e.Generate(ctx, params)
			if err != nil {
				return "", err
			}
			return res.Content, nil
		},
	}
}
