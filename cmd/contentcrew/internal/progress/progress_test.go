package progress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/germanamz/contentcrew/pkg/agentctx"
	"github.com/germanamz/contentcrew/pkg/content"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_ShowsProgressLines(t *testing.T) {
	m := New(nil)

	next, _ := m.Update(EventMsg{Kind: engine.EventRunStart})
	next, _ = next.Update(EventMsg{Kind: engine.EventTaskStart, Agent: content.ResearcherRole, Task: content.ResearchTaskName})
	m = next.(Model)

	require.Len(t, m.Lines(), 1)
	view := m.View()
	assert.Contains(t, view, "started research")
	assert.Contains(t, view, content.ProgressText)
}

func TestModel_KeepsLastLines(t *testing.T) {
	var model tea.Model = New(nil)
	for i := range maxLines + 5 {
		model, _ = model.Update(EventMsg{Kind: engine.EventTaskStart, Agent: "a", Task: fmt.Sprintf("t%d", i)})
	}

	lines := model.(Model).Lines()
	require.Len(t, lines, maxLines)
	assert.Contains(t, lines[len(lines)-1], fmt.Sprintf("t%d", maxLines+4))
}

func TestModel_InterruptCancels(t *testing.T) {
	cancelled := false
	m := New(func() { cancelled = true })

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd, "the model waits for Generate to return")
	assert.True(t, cancelled)
	assert.Contains(t, next.View(), "Cancelling...")
}

func TestModel_DoneQuits(t *testing.T) {
	m := New(nil)
	wantErr := errors.New("boom")

	next, cmd := m.Update(DoneMsg{Err: wantErr})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	final := next.(Model)
	assert.ErrorIs(t, final.Err, wantErr)
	assert.Empty(t, final.View())
}

func TestModel_WindowSize(t *testing.T) {
	next, _ := New(nil).Update(tea.WindowSizeMsg{Width: 30, Height: 10})
	m := next.(Model)

	next, _ = m.Update(EventMsg{Kind: engine.EventToolResult, Data: engine.ToolData{Result: strings.Repeat("x", 200)}})
	line := next.(Model).Lines()[0]
	assert.Contains(t, line, "...")
}

func TestModel_SpinnerTicks(t *testing.T) {
	m := New(nil)
	require.NotNil(t, m.Init())

	_, cmd := m.Update(m.spinner.Tick())
	assert.NotNil(t, cmd)
}

type fakeGenerator struct {
	bus *engine.EventBus
}

func (f fakeGenerator) Events() *engine.EventBus { return f.bus }

func (f fakeGenerator) Generate(ctx context.Context, p content.Params) (engine.Result, error) {
	id := agentctx.RunIDFromContext(ctx)
	f.bus.Publish(engine.Event{Kind: engine.EventTaskStart, RunID: id, Agent: content.ResearcherRole, Task: content.ResearchTaskName})
	return engine.Result{RunID: id, Params: p, Content: "# Article"}, nil
}

func TestRun(t *testing.T) {
	gen := fakeGenerator{bus: engine.NewEventBus()}

	var out bytes.Buffer
	res, err := Run(context.Background(), gen, content.DefaultParams(),
		tea.WithInput(nil),
		tea.WithOutput(&out),
	)
	require.NoError(t, err)
	assert.Equal(t, "# Article", res.Content)
	assert.NotEmpty(t, res.RunID)
}
