package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/tui/panels"
	"github.com/zappabad/tradinghall/tui/styles"
)

// Hall is the part of the hall service the presenter reads and controls.
type Hall interface {
	Snapshot() view.Snapshot
	Decisions(n int) []view.DecisionRecord
	SetRunning(ctx context.Context, running bool) error
	SetSymbol(ctx context.Context, symbol string) error
	TriggerFetch(ctx context.Context) (bool, error)
}

// DefaultSymbols are the coins the symbol keys cycle through.
var DefaultSymbols = []string{"btc", "eth", "sol", "bnb", "xrp", "ada", "doge", "mon"}

// PanelFocus represents which panel is currently focused.
type PanelFocus int

const (
	FocusArena PanelFocus = iota
	FocusAgents
	FocusDecisions
	focusCount
)

const (
	refreshInterval = 100 * time.Millisecond
	controlTimeout  = 2 * time.Second
	decisionLogSize = 100
)

var decimalHundred = decimal.NewFromInt(100)

// Model is the main TUI application model. It only reads snapshots; every
// change goes through the hall's control operations.
type Model struct {
	hall    Hall
	symbols []string

	// Panels
	arenaPanel     *panels.ArenaPanel
	agentsPanel    *panels.AgentsPanel
	decisionsPanel *panels.DecisionsPanel

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	snap         view.Snapshot
	focusedPanel PanelFocus

	// Window dimensions
	width  int
	height int

	// Status
	statusMsg string
	ready     bool
}

// NewModel creates a new TUI model. An empty symbols list falls back to
// DefaultSymbols.
func NewModel(h Hall, arena hall.Arena, symbols []string) *Model {
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.AccentColor)

	return &Model{
		hall:           h,
		symbols:        symbols,
		arenaPanel:     panels.NewArenaPanel(arena),
		agentsPanel:    panels.NewAgentsPanel(),
		decisionsPanel: panels.NewDecisionsPanel(),
		spinner:        sp,
		help:           help.New(),
		keys:           defaultKeyMap(),
		focusedPanel:   FocusAgents,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.refresh()
	return tea.Batch(
		m.arenaPanel.Init(),
		m.agentsPanel.Init(),
		m.decisionsPanel.Init(),
		m.spinner.Tick,
		m.tickRefresh(),
	)
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			cmds = append(cmds, m.setRunning(!m.snap.Running))
		case key.Matches(msg, m.keys.Next):
			cmds = append(cmds, m.setSymbol(m.cycleSymbol(1)))
		case key.Matches(msg, m.keys.Prev):
			cmds = append(cmds, m.setSymbol(m.cycleSymbol(-1)))
		case key.Matches(msg, m.keys.Refresh):
			cmds = append(cmds, m.triggerFetch())
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case msg.String() == "tab":
			m.focusedPanel = (m.focusedPanel + 1) % focusCount
		case msg.String() == "shift+tab":
			m.focusedPanel = (m.focusedPanel + focusCount - 1) % focusCount
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case controlResultMsg:
		m.statusMsg = msg.message
		m.refresh()

	case tickMsg:
		m.refresh()
		cmds = append(cmds, m.tickRefresh())
	}

	m.updateFocusedPanel(msg, &cmds)

	return m, tea.Batch(cmds...)
}

func (m *Model) updateFocusedPanel(msg tea.Msg, cmds *[]tea.Cmd) {
	var cmd tea.Cmd

	switch m.focusedPanel {
	case FocusArena:
		m.arenaPanel, cmd = m.arenaPanel.Update(msg)
	case FocusAgents:
		m.agentsPanel, cmd = m.agentsPanel.Update(msg)
	case FocusDecisions:
		m.decisionsPanel, cmd = m.decisionsPanel.Update(msg)
	}

	if cmd != nil {
		*cmds = append(*cmds, cmd)
	}
}

// View renders the UI.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	m.arenaPanel.SetFocus(m.focusedPanel == FocusArena)
	m.agentsPanel.SetFocus(m.focusedPanel == FocusAgents)
	m.decisionsPanel.SetFocus(m.focusedPanel == FocusDecisions)

	// Layout:
	// ┌──────────────────────────────────────────────┐
	// │ header: pair, price, running, fetching       │
	// ├──────────────────────────┬───────────────────┤
	// │                          │      Agents       │
	// │          Hall            ├───────────────────┤
	// │                          │     Decisions     │
	// ├──────────────────────────┴───────────────────┤
	// │ help                                         │
	// └──────────────────────────────────────────────┘

	header := m.renderHeader()
	footer := m.renderStatusBar()
	bodyHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 10)

	leftWidth := m.width * 3 / 5
	rightWidth := m.width - leftWidth
	agentsHeight := bodyHeight / 2
	decisionsHeight := bodyHeight - agentsHeight

	m.arenaPanel.SetSize(leftWidth, bodyHeight)
	m.agentsPanel.SetSize(rightWidth, agentsHeight)
	m.decisionsPanel.SetSize(rightWidth, decisionsHeight)

	right := lipgloss.JoinVertical(lipgloss.Left,
		m.agentsPanel.View(),
		m.decisionsPanel.View(),
	)
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.arenaPanel.View(), right)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	parts := []string{styles.HeaderBarStyle.Render(m.snap.Pair)}

	if mk := m.snap.Market; mk != nil {
		change := mk.Change().Mul(decimalHundred)
		changeStyle := styles.PriceUpStyle
		if change.IsNegative() {
			changeStyle = styles.PriceDownStyle
		}
		parts = append(parts,
			styles.PriceStyle.Render(mk.Last.StringFixed(2)),
			changeStyle.Render(change.StringFixed(2)+"%"),
			styles.MutedStyle.Render(fmt.Sprintf("H %s L %s", mk.High.StringFixed(2), mk.Low.StringFixed(2))),
		)
	}

	if m.snap.Running {
		parts = append(parts, styles.RunningStyle.Render("● running"))
	} else {
		parts = append(parts, styles.PausedStyle.Render("‖ paused"))
	}
	if m.snap.Fetching {
		parts = append(parts, m.spinner.View()+styles.MutedStyle.Render(" fetching decisions"))
	}
	parts = append(parts, styles.MutedStyle.Render(fmt.Sprintf("tick %d", m.snap.Tick)))

	return styles.StatusBarStyle.Width(m.width).Render(strings.Join(parts, "  "))
}

func (m *Model) renderStatusBar() string {
	status := ""
	if m.statusMsg != "" {
		status = " │ " + m.statusMsg
	}
	return styles.StatusBarStyle.Width(m.width).Render(m.help.View(m.keys) + status)
}

// refresh pulls the latest snapshot and decision log into the panels.
func (m *Model) refresh() {
	m.snap = m.hall.Snapshot()
	m.arenaPanel.SetSnapshot(m.snap)
	m.agentsPanel.SetSnapshot(m.snap)
	m.decisionsPanel.SetRecords(m.hall.Decisions(decisionLogSize))
}

// cycleSymbol returns the symbol step positions away from the current one.
func (m *Model) cycleSymbol(step int) string {
	idx := -1
	for i, s := range m.symbols {
		if strings.EqualFold(s, m.snap.Symbol) {
			idx = i
			break
		}
	}
	n := len(m.symbols)
	if idx < 0 {
		if step > 0 {
			return m.symbols[0]
		}
		return m.symbols[n-1]
	}
	return m.symbols[((idx+step)%n+n)%n]
}

func (m *Model) setRunning(running bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		if err := m.hall.SetRunning(ctx, running); err != nil {
			return controlResultMsg{message: "❌ " + err.Error()}
		}
		if running {
			return controlResultMsg{message: "▶ running"}
		}
		return controlResultMsg{message: "‖ paused"}
	}
}

func (m *Model) setSymbol(symbol string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		if err := m.hall.SetSymbol(ctx, symbol); err != nil {
			return controlResultMsg{message: "❌ " + err.Error()}
		}
		return controlResultMsg{message: "✓ switched to " + strings.ToUpper(symbol)}
	}
}

func (m *Model) triggerFetch() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		started, err := m.hall.TriggerFetch(ctx)
		if err != nil {
			return controlResultMsg{message: "❌ " + err.Error()}
		}
		if !started {
			return controlResultMsg{message: "already fetching"}
		}
		return controlResultMsg{message: "✓ fetching decisions"}
	}
}

// tickMsg is sent periodically to refresh data.
type tickMsg struct{}

func (m *Model) tickRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

// controlResultMsg is sent after a control operation completes.
type controlResultMsg struct {
	message string
}
