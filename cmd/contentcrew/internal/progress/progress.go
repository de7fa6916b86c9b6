// Package progress shows a spinner and live progress lines while a
// generation runs.
package progress

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/format"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/google/uuid"
)

// maxLines is how many progress lines stay on screen.
const maxLines = 12

// Generator runs a generation and publishes its progress.
type Generator interface {
	Generate(ctx context.Context, params content.Params) (engine.Result, error)
	Events() *engine.EventBus
}

// EventMsg delivers an engine event to the model.
type EventMsg engine.Event

// DoneMsg is sent when Generate returns.
type DoneMsg struct {
	Result engine.Result
	Err    error
}

// Model is the bubbletea model of a running generation.
type Model struct {
	spinner     spinner.Model
	lines       []string
	width       int
	cancel      context.CancelFunc
	done        bool
	interrupted bool

	Result engine.Result
	Err    error
}

// New returns a Model. cancel is called when the user interrupts.
func New(cancel context.CancelFunc) Model {
	return Model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Spinner{Frames: format.SpinnerFrames, FPS: time.Second / 10}),
			spinner.WithStyle(styles.SpinnerStyle),
		),
		width:  100,
		cancel: cancel,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			// Generate returns shortly after cancellation and sends DoneMsg.
			m.interrupted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case EventMsg:
		if line := format.DescribeEvent(engine.Event(msg), m.width); line != "" {
			m.lines = append(m.lines, line)
			if len(m.lines) > maxLines {
				m.lines = m.lines[len(m.lines)-maxLines:]
			}
		}
		return m, nil

	case DoneMsg:
		m.done = true
		m.Result = msg.Result
		m.Err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	if m.interrupted {
		b.WriteString(styles.DimStyle.Render("Cancelling..."))
	} else {
		b.WriteString(content.ProgressText)
		b.WriteString(styles.DimStyle.Render("  (esc to cancel)"))
	}
	b.WriteString("\n")
	return b.String()
}

// Lines returns the progress lines currently shown.
func (m Model) Lines() []string { return m.lines }

// Run generates params while showing the spinner and progress lines. Only
// events of this run are shown.
func Run(ctx context.Context, gen Generator, params content.Params, opts ...tea.ProgramOption) (engine.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runID := uuid.NewString()
	ctx = agentctx.WithRunID(ctx, runID)

	p := tea.NewProgram(New(cancel), opts...)

	bus := gen.Events()
	sub := bus.Subscribe(64)
	go func() {
		for e := range sub.C {
			if e.RunID == runID {
				p.Send(EventMsg(e))
			}
		}
	}()

	go func() {
		res, err := gen.Generate(ctx, params)
		bus.Unsubscribe(sub)
		p.Send(DoneMsg{Result: res, Err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return engine.Result{}, err
	}

	m, _ := final.(Model)
	return m.Result, m.Err
}
