package panels

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/tui/styles"
)

// DecisionsPanel displays the decision log, newest last.
type DecisionsPanel struct {
	records       []view.DecisionRecord
	selectedIndex int
	scrollOffset  int
	follow        bool
	focused       bool
	width         int
	height        int
}

// NewDecisionsPanel creates a new decisions panel.
func NewDecisionsPanel() *DecisionsPanel {
	return &DecisionsPanel{follow: true}
}

// Init initializes the panel.
func (p *DecisionsPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *DecisionsPanel) Update(msg tea.Msg) (*DecisionsPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("up", "k"))):
			if p.selectedIndex > 0 {
				p.selectedIndex--
				p.follow = false
				if p.selectedIndex < p.scrollOffset {
					p.scrollOffset = p.selectedIndex
				}
			}
		case key.Matches(msg, key.NewBinding(key.WithKeys("down", "j"))):
			if p.selectedIndex < len(p.records)-1 {
				p.selectedIndex++
				p.follow = p.selectedIndex == len(p.records)-1
				p.keepVisible()
			}
		}
	}
	return p, nil
}

func (p *DecisionsPanel) visibleItems() int {
	return max(p.height-4, 1)
}

func (p *DecisionsPanel) keepVisible() {
	visible := p.visibleItems()
	if p.selectedIndex >= p.scrollOffset+visible {
		p.scrollOffset = p.selectedIndex - visible + 1
	}
}

// View renders the panel.
func (p *DecisionsPanel) View() string {
	var content strings.Builder

	if len(p.records) == 0 {
		content.WriteString(styles.MutedStyle.Render("No decisions yet"))
	} else {
		visible := p.visibleItems()
		start := p.scrollOffset
		end := min(start+visible, len(p.records))

		for i := start; i < end; i++ {
			r := p.records[i]

			timeStyled := styles.TimeStyle.Render(r.At.Format("15:04:05"))
			agent := styles.AgentStyle(r.Kind).Render(fmt.Sprintf("%-10s", styles.Truncate(string(r.AgentID), 10)))

			var body string
			if r.Decision.IsError {
				body = styles.ErrorStyle.Render(styles.Truncate(r.Decision.Message, p.width-30))
			} else {
				act := fmt.Sprintf("%-4s", r.Decision.Action)
				text := r.Decision.Reasoning
				if text == "" {
					text = r.Decision.Message
				}
				body = styles.ActionStyle(r.Decision.Action).Render(act) + " " +
					styles.RowStyle.Render(styles.Truncate(text, p.width-35))
			}

			line := fmt.Sprintf("%s %s %s", timeStyled, agent, body)
			if i == p.selectedIndex && p.focused {
				line = styles.SelectedRowStyle.Render(line)
			}

			content.WriteString(line)
			if i < end-1 {
				content.WriteString("\n")
			}
		}

		if len(p.records) > visible {
			content.WriteString("\n")
			content.WriteString(styles.MutedStyle.Render(fmt.Sprintf(" (%d/%d)", p.selectedIndex+1, len(p.records))))
		}
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle("📜 Decisions", p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, content.String())

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// SetFocus sets the focus state of the panel.
func (p *DecisionsPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *DecisionsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetRecords replaces the log. While following, the selection sticks to the
// newest record.
func (p *DecisionsPanel) SetRecords(records []view.DecisionRecord) {
	p.records = records
	if p.follow || p.selectedIndex >= len(records) {
		p.selectedIndex = max(len(records)-1, 0)
		p.follow = true
	}
	if p.scrollOffset > p.selectedIndex {
		p.scrollOffset = p.selectedIndex
	}
	p.keepVisible()
}

// SelectedRecord returns the currently selected record.
func (p *DecisionsPanel) SelectedRecord() (view.DecisionRecord, bool) {
	if p.selectedIndex >= 0 && p.selectedIndex < len(p.records) {
		return p.records[p.selectedIndex], true
	}
	return view.DecisionRecord{}, false
}
