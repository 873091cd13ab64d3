package hall

import (
	"fmt"
	"strings"
)

// AgentID uniquely identifies an agent for the lifetime of the hall.
type AgentID string

// AgentKind classifies how an agent trades.
type AgentKind uint8

const (
	KindHuman AgentKind = iota
	KindGambler
	KindValue
)

func (k AgentKind) String() string {
	switch k {
	case KindHuman:
		return "human"
	case KindGambler:
		return "gambler"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// ParseAgentKind accepts the names produced by String. "user" is an alias for human.
func ParseAgentKind(s string) (AgentKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human", "user":
		return KindHuman, true
	case "gambler":
		return KindGambler, true
	case "value":
		return KindValue, true
	default:
		return 0, false
	}
}

// MarshalText lets kinds travel as strings in JSON and TOML.
func (k AgentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *AgentKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseAgentKind(string(text))
	if !ok {
		return &UnknownKindError{Name: string(text)}
	}
	*k = parsed
	return nil
}

// UnknownKindError is returned when an agent kind name is not recognized.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string { return "unknown agent kind " + strings.TrimSpace(e.Name) }

type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every facing in the order used for uniform sampling.
var Directions = [...]Direction{Up, Down, Left, Right}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Direction) UnmarshalText(text []byte) error {
	parsed, ok := ParseDirection(string(text))
	if !ok {
		return fmt.Errorf("unknown direction %q", text)
	}
	*d = parsed
	return nil
}

// Point is a position in arena coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset returns p shifted by dx, dy.
func (p Point) Offset(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Arena is the rectangle agents are confined to.
type Arena struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// DefaultArena is the [50,750]x[50,650] floor of the trading hall.
var DefaultArena = Arena{MinX: 50, MaxX: 750, MinY: 50, MaxY: 650}

// Contains reports whether p lies inside the arena, edges included.
func (a Arena) Contains(p Point) bool {
	return p.X >= a.MinX && p.X <= a.MaxX && p.Y >= a.MinY && p.Y <= a.MaxY
}

// Clamp pulls p back inside the arena.
func (a Arena) Clamp(p Point) Point {
	return Point{X: clamp(p.X, a.MinX, a.MaxX), Y: clamp(p.Y, a.MinY, a.MaxY)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Agent is a simulated actor wandering the hall.
type Agent struct {
	ID     AgentID   `json:"id"`
	Name   string    `json:"name"`
	Kind   AgentKind `json:"kind"`
	Pos    Point     `json:"pos"`
	Facing Direction `json:"facing"`
}

// IsHuman reports whether the agent is driven by the user rather than a decision source.
func (a Agent) IsHuman() bool { return a.Kind == KindHuman }

// DefaultAgents returns the hall's starting cast: one user and two of each trading style.
func DefaultAgents() []Agent {
	return []Agent{
		{ID: "user", Name: "You", Kind: KindHuman, Pos: Point{X: 400, Y: 350}, Facing: Down},
		{ID: "gambler-1", Name: "Gambler A", Kind: KindGambler, Pos: Point{X: 200, Y: 200}, Facing: Right},
		{ID: "gambler-2", Name: "Gambler B", Kind: KindGambler, Pos: Point{X: 600, Y: 500}, Facing: Left},
		{ID: "value-1", Name: "Value A", Kind: KindValue, Pos: Point{X: 200, Y: 500}, Facing: Up},
		{ID: "value-2", Name: "Value B", Kind: KindValue, Pos: Point{X: 600, Y: 200}, Facing: Down},
	}
}

// ParseDirection accepts the names produced by Direction.String.
func ParseDirection(s string) (Direction, bool) {
	for _, d := range Directions {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, true
		}
	}
	return 0, false
}
