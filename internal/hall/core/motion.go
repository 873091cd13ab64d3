package core

import "github.com/zappabad/tradinghall/internal/hall"

const (
	// TurnProbability is the chance per tick that an agent picks a new facing.
	TurnProbability = 0.3
	MinSpeed        = 1.0
	MaxSpeed        = 3.0
)

// Rand is the randomness the core consumes. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Advance moves every agent one step and returns a new slice. Agents that
// would leave the arena are clamped to its edge without turning around.
func Advance(agents []hall.Agent, rng Rand, arena hall.Arena) []hall.Agent {
	out := make([]hall.Agent, len(agents))
	for i, a := range agents {
		if rng.Float64() < TurnProbability {
			a.Facing = hall.Directions[rng.IntN(len(hall.Directions))]
		}
		speed := MinSpeed + rng.Float64()*(MaxSpeed-MinSpeed)
		dx, dy := delta(a.Facing, speed)
		a.Pos = arena.Clamp(a.Pos.Offset(dx, dy))
		out[i] = a
	}
	return out
}

func delta(d hall.Direction, speed float64) (float64, float64) {
	switch d {
	case hall.Up:
		return 0, -speed
	case hall.Down:
		return 0, speed
	case hall.Left:
		return -speed, 0
	case hall.Right:
		return speed, 0
	default:
		return 0, 0
	}
}
