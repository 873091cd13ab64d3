package panels

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zappabad/tradinghall/internal/decision"
	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/view"
	"github.com/zappabad/tradinghall/tui/styles"
)

// ArenaPanel draws the hall floor with agents and their bubbles scaled onto
// a character grid.
type ArenaPanel struct {
	arena hall.Arena
	snap  view.Snapshot

	focused bool
	width   int
	height  int
}

// NewArenaPanel creates an arena panel for the given floor.
func NewArenaPanel(arena hall.Arena) *ArenaPanel {
	return &ArenaPanel{arena: arena}
}

// Init initializes the panel.
func (p *ArenaPanel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the panel.
func (p *ArenaPanel) Update(msg tea.Msg) (*ArenaPanel, tea.Cmd) {
	return p, nil
}

// View renders the panel.
func (p *ArenaPanel) View() string {
	cols := p.width - 6
	rows := p.height - 5
	if cols < 10 {
		cols = 10
	}
	if rows < 5 {
		rows = 5
	}

	panelStyle := styles.PanelStyle
	if p.focused {
		panelStyle = styles.FocusedPanelStyle
	}

	title := styles.RenderTitle(fmt.Sprintf("🏛  Trading Hall - %s", p.snap.Pair), p.focused)
	panel := lipgloss.JoinVertical(lipgloss.Left, title, p.render(cols, rows))

	return panelStyle.Width(p.width - 2).Height(p.height - 2).Render(panel)
}

// render lays agents and bubbles out on a cols x rows grid. Agent glyphs are
// placed first; a label rune is only drawn where every cell it covers is free.
func (p *ArenaPanel) render(cols, rows int) string {
	grid := make([][]string, rows)
	taken := make([][]bool, rows)
	for r := range grid {
		grid[r] = make([]string, cols)
		taken[r] = make([]bool, cols)
		for c := range grid[r] {
			grid[r][c] = styles.FloorStyle.Render("·")
		}
	}

	trades := make(map[hall.AgentID]core.TradingBubble, len(p.snap.Trades))
	for _, tb := range p.snap.Trades {
		trades[tb.AgentID] = tb
	}

	cells := make([][2]int, len(p.snap.Agents))
	for i, a := range p.snap.Agents {
		col, row := p.cell(a.Pos, cols, rows)
		cells[i] = [2]int{col, row}
		grid[row][col] = styles.AgentStyle(a.Kind).Render(glyph(a))
		taken[row][col] = true
	}

	for i, a := range p.snap.Agents {
		label, style := p.bubbleLabel(a, trades)
		if label == "" {
			continue
		}
		col, row := cells[i][0], cells[i][1]

		// the bubble line sits above the agent, or below at the top edge
		line := row - 1
		if line < 0 {
			line = row + 1
		}
		if line >= rows {
			continue
		}

		c := col - lipgloss.Width(label)/2
		for _, r := range label {
			w := lipgloss.Width(string(r))
			if c >= 0 && c+w <= cols && free(taken[line][c:c+w]) {
				grid[line][c] = style.Render(string(r))
				taken[line][c] = true
				// wide runes cover the next cell
				for k := 1; k < w; k++ {
					grid[line][c+k] = ""
					taken[line][c+k] = true
				}
			}
			c += w
		}
	}

	lines := make([]string, rows)
	for r := range grid {
		lines[r] = strings.Join(grid[r], "")
	}
	return strings.Join(lines, "\n")
}

func free(cells []bool) bool {
	for _, t := range cells {
		if t {
			return false
		}
	}
	return true
}

// bubbleLabel picks the short text drawn above an agent. An open trade wins
// over the chat bubble state.
func (p *ArenaPanel) bubbleLabel(a hall.Agent, trades map[hall.AgentID]core.TradingBubble) (string, lipgloss.Style) {
	if tb, ok := trades[a.ID]; ok {
		return tb.Label, styles.ActionStyle(tb.Action)
	}
	b, ok := p.snap.ChatFor(a.ID)
	if !ok {
		return "", styles.MutedStyle
	}
	switch b.State {
	case core.BubbleAnalyzing:
		return "…", styles.MutedStyle
	case core.BubbleError:
		return "!", styles.ErrorStyle
	case core.BubbleDecided:
		if b.Decision != nil && b.Decision.Action != decision.ActionNone {
			return string(b.Decision.Action), styles.ActionStyle(b.Decision.Action)
		}
		return "✓", styles.MutedStyle
	default:
		return "", styles.MutedStyle
	}
}

// cell maps an arena position onto the grid.
func (p *ArenaPanel) cell(pos hall.Point, cols, rows int) (int, int) {
	fx := (pos.X - p.arena.MinX) / (p.arena.MaxX - p.arena.MinX)
	fy := (pos.Y - p.arena.MinY) / (p.arena.MaxY - p.arena.MinY)
	col := int(math.Round(fx * float64(cols-1)))
	row := int(math.Round(fy * float64(rows-1)))
	return clampInt(col, 0, cols-1), clampInt(row, 0, rows-1)
}

func glyph(a hall.Agent) string {
	switch a.Kind {
	case hall.KindHuman:
		return "@"
	case hall.KindGambler:
		return "G"
	default:
		return "V"
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetFocus sets the focus state of the panel.
func (p *ArenaPanel) SetFocus(focused bool) {
	p.focused = focused
}

// SetSize sets the panel dimensions.
func (p *ArenaPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetSnapshot sets the hall snapshot to draw.
func (p *ArenaPanel) SetSnapshot(snap view.Snapshot) {
	p.snap = snap
}
