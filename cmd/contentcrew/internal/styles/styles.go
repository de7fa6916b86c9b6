package styles

import "github.com/charmbracelet/lipgloss"

// GitHub terminal light theme palette.
var (
	ColorFg      = lipgloss.Color("#24292f") // primary foreground
	ColorMuted   = lipgloss.Color("#656d76") // muted/dim text
	ColorAccent  = lipgloss.Color("#0969da") // accent blue
	ColorError   = lipgloss.Color("#cf222e") // error red
	ColorSuccess = lipgloss.Color("#1a7f37") // success green
	ColorWarning = lipgloss.Color("#9a6700") // warning amber
	ColorMagenta = lipgloss.Color("#8250df") // purple/magenta
)

// Centralized style definitions for the CLI.
var (
	TitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorFg)

	// Progress lines.
	AgentStyle      = lipgloss.NewStyle().Bold(true).Foreground(ColorMagenta)
	ToolNameStyle   = lipgloss.NewStyle().Bold(true)
	ToolResultStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	ToolErrorStyle  = lipgloss.NewStyle().Foreground(ColorError)
	SpinnerStyle    = lipgloss.NewStyle().Foreground(ColorMagenta)

	DimStyle     = lipgloss.NewStyle().Foreground(ColorMuted)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess)

	WarningStyle = lipgloss.NewStyle().Foreground(ColorWarning)

	ErrorBlockStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(ColorError)
)

// Tree-drawing characters for hierarchical display.
const (
	TreeCorner = "└ "
	TreeTee    = "├─ "
)
