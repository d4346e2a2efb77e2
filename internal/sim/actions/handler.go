package actions

import (
	"sort"

	"gridarena.ai/internal/sim/grid"
	"gridarena.ai/internal/sim/objects"
)

// Handler validates and applies one action type. Failure is routine during
// exploration and is reported only through the boolean.
type Handler interface {
	Name() string
	// Priority orders simultaneous actions within a tick; higher runs first.
	Priority() int
	// MaxArg is the inclusive upper bound of the accepted argument.
	MaxArg() int
	HandleAction(actor *objects.Agent, arg int) bool
}

// Grid is the part of the spatial grid the handlers consume.
type Grid interface {
	RelativeLocation(origin grid.Location, facing grid.Orientation, distance, offset int) grid.Location
	ObjectAt(loc grid.Location) grid.Object
	Move(id int, to grid.Location) bool
	Swap(a, b int) bool
}

// ActionConfig is bound at handler construction and never mutated.
type ActionConfig struct {
	Name string
}

type base struct {
	name     string
	priority int
	grid     Grid
}

func (b *base) Name() string  { return b.name }
func (b *base) Priority() int { return b.priority }

func newBase(cfg ActionConfig, fallback string, priority int, g Grid) base {
	name := cfg.Name
	if name == "" {
		name = fallback
	}
	return base{name: name, priority: priority, grid: g}
}

func agentAt(g Grid, loc grid.Location) *objects.Agent {
	loc.Layer = grid.AgentLayer
	a, _ := g.ObjectAt(loc).(*objects.Agent)
	return a
}

func sortedItems(m map[objects.InventoryItem]int) []objects.InventoryItem {
	out := make([]objects.InventoryItem, 0, len(m))
	for item := range m {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func copyResources(in map[objects.InventoryItem]int) map[objects.InventoryItem]int {
	out := make(map[objects.InventoryItem]int, len(in))
	for k, v := range in {
		if v > 0 {
			out[k] = v
		}
	}
	return out
}
