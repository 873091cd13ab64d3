package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zappabad/tradinghall/internal/hall"
	"github.com/zappabad/tradinghall/internal/hall/view"
)

type fakeHall struct {
	mu       sync.Mutex
	snap     view.Snapshot
	symbols  []string
	running  []bool
	triggers int
}

func (f *fakeHall) Snapshot() view.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeHall) Decisions(n int) []view.DecisionRecord { return nil }

func (f *fakeHall) SetRunning(ctx context.Context, running bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = append(f.running, running)
	f.snap.Running = running
	return nil
}

func (f *fakeHall) SetSymbol(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbols = append(f.symbols, symbol)
	f.snap.Symbol = symbol
	f.snap.Pair = strings.ToUpper(symbol) + "/USDT"
	return nil
}

func (f *fakeHall) TriggerFetch(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return true, nil
}

func newFakeHall() *fakeHall {
	return &fakeHall{snap: view.Snapshot{
		Symbol:  "btc",
		Pair:    "BTC/USDT",
		Running: true,
		Agents:  hall.DefaultAgents(),
	}}
}

// drain runs cmd and any batched commands it yields, feeding control results
// back into the model.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, m, c)
		}
	case controlResultMsg:
		m.Update(msg)
	}
}

func keyPress(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestCycleSymbolWraps(t *testing.T) {
	m := NewModel(newFakeHall(), hall.DefaultArena, []string{"btc", "eth", "sol"})
	m.refresh()

	if got := m.cycleSymbol(1); got != "eth" {
		t.Fatalf("next: got %q, want eth", got)
	}
	if got := m.cycleSymbol(-1); got != "sol" {
		t.Fatalf("prev: got %q, want sol", got)
	}

	m.snap.Symbol = "doge"
	if got := m.cycleSymbol(1); got != "btc" {
		t.Fatalf("unknown next: got %q, want btc", got)
	}
	if got := m.cycleSymbol(-1); got != "sol" {
		t.Fatalf("unknown prev: got %q, want sol", got)
	}
}

func TestKeysDriveHallControls(t *testing.T) {
	h := newFakeHall()
	m := NewModel(h, hall.DefaultArena, []string{"btc", "eth"})
	m.refresh()

	_, cmd := m.Update(keyPress("n"))
	drain(t, m, cmd)
	if len(h.symbols) != 1 || h.symbols[0] != "eth" {
		t.Fatalf("symbols: got %v", h.symbols)
	}
	if m.snap.Pair != "ETH/USDT" {
		t.Fatalf("snapshot not refreshed after control: %q", m.snap.Pair)
	}
	if !strings.Contains(m.statusMsg, "ETH") {
		t.Fatalf("status: %q", m.statusMsg)
	}

	_, cmd = m.Update(keyPress(" "))
	drain(t, m, cmd)
	if len(h.running) != 1 || h.running[0] {
		t.Fatalf("running: got %v, want [false]", h.running)
	}

	_, cmd = m.Update(keyPress("r"))
	drain(t, m, cmd)
	if h.triggers != 1 {
		t.Fatalf("triggers: got %d, want 1", h.triggers)
	}
}

func TestFocusCycles(t *testing.T) {
	m := NewModel(newFakeHall(), hall.DefaultArena, nil)
	if m.focusedPanel != FocusAgents {
		t.Fatalf("initial focus: %d", m.focusedPanel)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPanel != FocusDecisions {
		t.Fatalf("after tab: %d", m.focusedPanel)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focusedPanel != FocusArena {
		t.Fatalf("tab should wrap: %d", m.focusedPanel)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.focusedPanel != FocusDecisions {
		t.Fatalf("after shift+tab: %d", m.focusedPanel)
	}
}

func TestViewRendersHall(t *testing.T) {
	m := NewModel(newFakeHall(), hall.DefaultArena, nil)
	if got := m.View(); got != "Initializing..." {
		t.Fatalf("before size: %q", got)
	}

	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.refresh()
	out := m.View()
	for _, want := range []string{"BTC/USDT", "running", "Agents", "Decisions"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
