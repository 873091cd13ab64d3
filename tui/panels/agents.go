package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/tui/styles"
)

// AgentsPanel lists every agent with its current bubble and shows the full
// reasoning of the selected one.
type AgentsPanel struct {
	snap          view.Snapshot
	selectedIndex int
	focused       bool
	width         int
	height        int
}

// NewAgentsPanel creates a new agents panel.
func NewAgentsPanel() *AgentsPanel {
	return &AgentsPanel{}
}

// Init initializes the panel.
func (p *AgentsPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *AgentsPanel) Update(msg tea.Msg) (*AgentsPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.snap.Agents)-1 {
				p.selectedIndex++
			}
		}
	}
	return p, nil
}

// View renders the panel.
func (p *AgentsPanel) View() string {
	var content strings.Builder

	header := fmt.Sprintf("%-10s %-8s %-10s %-5s %5s %12s", "Agent", "Kind", "Bubble", "Act", "Conf", "Price")
	content.WriteString(styles.HeaderStyle.Render(header))
	content.WriteString("\n")

	for i, a := range p.snap.Agents {
		b, _ := p.snap.ChatFor(a.ID)

		act, conf, price := "-", "-", "-"
		var action decision.Action
		if d := b.Decision; d != nil {
			action = d.Action
			if d.Action != decision.ActionNone {
				act = string(d.Action)
			}
			conf = fmt.Sprintf("%.0f%%", d.Confidence*100)
			if d.Price.Valid {
				price = d.Price.Decimal.StringFixed(2)
			}
		}

		name := styles.AgentStyle(a.Kind).Render(fmt.Sprintf("%-10s", styles.Truncate(string(a.ID), 10)))
		row := fmt.Sprintf("%s %-8s %-10s %s %5s %12s",
			name,
			a.Kind,
			b.State,
			styles.ActionStyle(action).Render(fmt.Sprintf("%-5s", act)),
			conf,
			price,
		)
		if i == p.selectedIndex && p.focused {
			row = styles.SelectedRowStyle.Render(row)
		}
		content.WriteString(row)
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(p.detail())

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("🧑 Agents", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// detail renders the selected agent's bubble text.
func (p *AgentsPanel) detail() string {
	a, ok := p.SelectedAgent()
	if !ok {
		return ""
	}
	b, _ := p.snap.ChatFor(a.ID)
	width := p.width - 6
	if width < 10 {
		width = 10
	}

	var text string
	style := styles.ReasoningStyle
	switch {
	case b.Decision != nil && b.Decision.Reasoning != "":
		text = b.Decision.Reasoning
	case b.State == core.BubbleError:
		text, style = b.Message, styles.ErrorStyle
	default:
		text, style = b.Message, styles.MutedStyle
	}
	label := styles.AgentStyle(a.Kind).Render(a.Name + ": ")
	return label + style.Width(width).Render(text)
}

// SetFocus sets the focus state of the panel.
func (p *AgentsPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *AgentsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSnapshot sets the hall snapshot to list.
func (p *AgentsPanel) SetSnapshot(snap view.Snapshot) {
	p.snap = snap
	if p.selectedIndex >= len(snap.Agents) {
		p.selectedIndex = max(len(snap.Agents)-1, 0)
	}
}

// SelectedAgent returns the currently selected agent.
func (p *AgentsPanel) SelectedAgent() (hall.Agent, bool) {
	if p.selectedIndex >= 0 && p.selectedIndex < len(p.snap.Agents) {
		return p.snap.Agents[p.selectedIndex], true
	}
	return hall.Agent{}, false
}
