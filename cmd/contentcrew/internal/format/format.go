package format

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/germanamz/contentcrew/cmd/contentcrew/internal/styles"
	"github.com/germanamz/contentcrew/pkg/engine"
	"github.com/mattn/go-runewidth"
)

// IsDarkBG is set once before bubbletea starts so that glamour never issues
// its own OSC 11 query while the program is running.
var IsDarkBG bool

// SpinnerFrames are braille characters for smooth animation.
var SpinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

var (
	mdRenderer      *glamour.TermRenderer
	mdRendererMu    sync.Mutex
	mdRendererWidth int
)

// InitMarkdownRenderer initializes the glamour renderer at the given width.
func InitMarkdownRenderer(width int) {
	if width <= 0 {
		width = 100
	}
	mdRendererMu.Lock()
	defer mdRendererMu.Unlock()
	if width == mdRendererWidth && mdRenderer != nil {
		return
	}
	// A fixed style; glamour.WithAutoStyle() would query the terminal.
	style := glamourstyles.LightStyleConfig
	if IsDarkBG {
		style = glamourstyles.DarkStyleConfig
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return
	}
	mdRenderer = r
	mdRendererWidth = width
}

// RenderMarkdown converts markdown text to terminal-formatted output. Without
// an initialized renderer the text is returned unchanged.
func RenderMarkdown(text string) string {
	mdRendererMu.Lock()
	r := mdRenderer
	mdRendererMu.Unlock()
	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// Truncate shortens s to at most width terminal cells, with "..." appended
// if truncated. Newlines are replaced with spaces for single-line display.
func Truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width+3, "...")
}

// FmtTokens formats a token count for display, using k/M suffixes.
func FmtTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// FmtDuration formats a duration for display.
func FmtDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", mins, sec)
}

// DescribeEvent renders an engine event as one progress line of at most
// width cells. Events without a line (run start and end) return "".
func DescribeEvent(e engine.Event, width int) string {
	agent := styles.AgentStyle.Render(e.Agent)

	switch e.Kind {
	case engine.EventTaskStart:
		return fmt.Sprintf("%s %s", agent, styles.DimStyle.Render("started "+e.Task))

	case engine.EventToolCall:
		d, _ := e.Data.(engine.ToolData)
		line := fmt.Sprintf("%s%s %s", styles.TreeTee, d.Tool, d.Arguments)
		return "  " + styles.ToolNameStyle.Render(Truncate(line, width-2))

	case engine.EventToolResult:
		d, _ := e.Data.(engine.ToolData)
		style := styles.ToolResultStyle
		if d.IsError {
			style = styles.ToolErrorStyle
		}
		return "  " + style.Render(Truncate(styles.TreeCorner+d.Result, width-2))

	case engine.EventTaskEnd:
		d, _ := e.Data.(engine.TaskEndData)
		return fmt.Sprintf("%s %s", agent, styles.SuccessStyle.Render(
			fmt.Sprintf("finished %s in %s", e.Task, FmtDuration(d.Duration))))

	case engine.EventError:
		d, _ := e.Data.(engine.ErrorData)
		return styles.ToolErrorStyle.Render(Truncate(d.Error, width))
	}

	return ""
}
