package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
)

// Color palette
var (
	// Primary colors
	PrimaryColor = lipgloss.Color("#7C3AED") // Purple
	AccentColor  = lipgloss.Color("#F59E0B") // Amber

	// Status colors
	BuyColor     = lipgloss.Color("#10B981") // Green
	SellColor    = lipgloss.Color("#EF4444") // Red
	NeutralColor = lipgloss.Color("#6B7280") // Gray

	// Agent colors
	HumanColor   = lipgloss.Color("#38BDF8") // Sky
	GamblerColor = lipgloss.Color("#F472B6") // Pink
	ValueColor   = lipgloss.Color("#FBBF24") // Gold

	// Background colors
	BackgroundColor  = lipgloss.Color("#1F2937")
	FloorColor       = lipgloss.Color("#1E293B")
	BorderColor      = lipgloss.Color("#374151")
	FocusBorderColor = lipgloss.Color("#7C3AED")

	// Text colors
	TextColor          = lipgloss.Color("#F9FAFB")
	TextSecondaryColor = lipgloss.Color("#9CA3AF")
	TextMutedColor     = lipgloss.Color("#6B7280")
)

// Panel styles
var (
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	FocusedPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(FocusBorderColor).
				Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(PrimaryColor).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(TextSecondaryColor)

	RowStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	SelectedRowStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(lipgloss.Color("#374151"))
)

// Text styles
var (
	BuyStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(BuyColor)

	SellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SellColor)

	HoldStyle = lipgloss.NewStyle().
			Foreground(TextSecondaryColor)

	PriceStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	PriceUpStyle = lipgloss.NewStyle().
			Foreground(BuyColor)

	PriceDownStyle = lipgloss.NewStyle().
			Foreground(SellColor)

	TimeStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	MutedStyle = lipgloss.NewStyle().
			Foreground(TextMutedColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(SellColor)

	ReasoningStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Italic(true)

	FloorStyle = lipgloss.NewStyle().
			Foreground(BorderColor).
			Background(FloorColor)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(BackgroundColor).
			Foreground(TextSecondaryColor).
			Padding(0, 1)

	HeaderBarStyle = lipgloss.NewStyle().
			Background(BackgroundColor).
			Foreground(TextColor).
			Bold(true).
			Padding(0, 1)

	RunningStyle = lipgloss.NewStyle().
			Foreground(BuyColor).
			Bold(true)

	PausedStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)
)

// RenderTitle renders a panel title bar.
func RenderTitle(title string, focused bool) string {
	style := TitleStyle
	if focused {
		style = style.Foreground(FocusBorderColor)
	}
	return style.Render(title)
}

// AgentStyle colors an agent glyph or name by kind.
func AgentStyle(k hall.AgentKind) lipgloss.Style {
	switch k {
	case hall.KindHuman:
		return lipgloss.NewStyle().Foreground(HumanColor).Bold(true)
	case hall.KindGambler:
		return lipgloss.NewStyle().Foreground(GamblerColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(ValueColor).Bold(true)
	}
}

// ActionStyle colors a decision action.
func ActionStyle(a decision.Action) lipgloss.Style {
	switch a {
	case decision.ActionBuy:
		return BuyStyle
	case decision.ActionSell:
		return SellStyle
	default:
		return HoldStyle
	}
}

// Truncate shortens s to width cells, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width-1 {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
