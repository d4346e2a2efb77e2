package actions

import (
	"gridarena.ai/internal/sim/grid"
	"gridarena.ai/internal/sim/objects"
)

type Noop struct{ base }

func NewNoop(cfg ActionConfig, g Grid) *Noop {
	return &Noop{base: newBase(cfg, "noop", 0, g)}
}

func (h *Noop) MaxArg() int { return 0 }

func (h *Noop) HandleAction(actor *objects.Agent, arg int) bool {
	return arg == 0
}

// Rotate turns the actor to face the orientation given by arg.
type Rotate struct{ base }

func NewRotate(cfg ActionConfig, g Grid) *Rotate {
	return &Rotate{base: newBase(cfg, "rotate", 0, g)}
}

func (h *Rotate) MaxArg() int { return int(grid.Right) }

func (h *Rotate) HandleAction(actor *objects.Agent, arg int) bool {
	if arg < 0 || arg > h.MaxArg() {
		return false
	}
	actor.Orientation = grid.Orientation(arg)
	return true
}

// Move steps one cell forward (arg 0) or backward (arg 1) without turning.
type Move struct{ base }

func NewMove(cfg ActionConfig, g Grid) *Move {
	return &Move{base: newBase(cfg, "move", 0, g)}
}

func (h *Move) MaxArg() int { return 1 }

func (h *Move) HandleAction(actor *objects.Agent, arg int) bool {
	facing := actor.Orientation
	switch arg {
	case 0:
	case 1:
		facing = facing.Opposite()
	default:
		return false
	}
	to := h.grid.RelativeLocation(actor.Loc(), facing, 1, 0)
	return h.grid.Move(actor.ObjectID(), to)
}

// Swap trades places with the agent directly ahead, which only succeeds
// while that agent is frozen.
type Swap struct{ base }

func NewSwap(cfg ActionConfig, g Grid) *Swap {
	return &Swap{base: newBase(cfg, "swap", 0, g)}
}

func (h *Swap) MaxArg() int { return 0 }

func (h *Swap) HandleAction(actor *objects.Agent, arg int) bool {
	if arg != 0 {
		return false
	}
	target := agentAt(h.grid, h.grid.RelativeLocation(actor.Loc(), actor.Orientation, 1, 0))
	if target == nil || !target.Swappable() {
		return false
	}
	return h.grid.Swap(actor.ObjectID(), target.ObjectID())
}
