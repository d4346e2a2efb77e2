package objects

import (
	"sort"

	"gridarena.ai/internal/sim/grid"
	"gridarena.ai/internal/sim/stats"
)

type InventoryItem = uint8

// AgentConfig is the immutable per-group agent configuration.
type AgentConfig struct {
	TypeID               uint8
	TypeName             string
	GroupID              uint8
	GroupName            string
	FreezeDuration       int
	ActionFailurePenalty float64
	ResourceLimits       map[InventoryItem]int
	ResourceRewards      map[InventoryItem]float64
	ResourceRewardMax    map[InventoryItem]float64
	GroupRewardPct       float64
}

type Agent struct {
	grid.Base

	TypeID    uint8
	TypeName  string
	Group     uint8
	GroupName string
	AgentID   int
	Color     uint8

	// Frozen counts remaining incapacitated ticks; 0 means active.
	Frozen         int
	FreezeDuration int
	Orientation    grid.Orientation

	ActionFailurePenalty float64
	GroupRewardPct       float64

	CurrentResourceReward float64
	Stats                 *stats.Tracker

	// Amounts of zero are never stored.
	inventory         map[InventoryItem]int
	resourceLimits    map[InventoryItem]int
	resourceRewards   map[InventoryItem]float64
	resourceRewardMax map[InventoryItem]float64

	reward RewardSlot
}

var _ grid.Object = (*Agent)(nil)

func NewAgent(objectID int, loc grid.Location, cfg AgentConfig, names stats.ItemNamer) *Agent {
	loc.Layer = grid.AgentLayer
	return &Agent{
		Base:                 grid.Base{ID: objectID, Location: loc},
		TypeID:               cfg.TypeID,
		TypeName:             cfg.TypeName,
		Group:                cfg.GroupID,
		GroupName:            cfg.GroupName,
		FreezeDuration:       cfg.FreezeDuration,
		ActionFailurePenalty: cfg.ActionFailurePenalty,
		GroupRewardPct:       cfg.GroupRewardPct,
		Stats:                stats.NewTracker(names),
		inventory:            map[InventoryItem]int{},
		resourceLimits:       copyMap(cfg.ResourceLimits),
		resourceRewards:      copyMap(cfg.ResourceRewards),
		resourceRewardMax:    copyMap(cfg.ResourceRewardMax),
	}
}

func copyMap[V int | float64](in map[InventoryItem]V) map[InventoryItem]V {
	out := make(map[InventoryItem]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Init binds the agent to its reward slot.
func (a *Agent) Init(slot RewardSlot) {
	a.reward = slot
}

func (a *Agent) Reward() RewardSlot { return a.reward }

func (a *Agent) Amount(item InventoryItem) int {
	return a.inventory[item]
}

func (a *Agent) Limit(item InventoryItem) int {
	return a.resourceLimits[item]
}

// Inventory returns a copy of the non-zero inventory entries.
func (a *Agent) Inventory() map[InventoryItem]int {
	return copyMap(a.inventory)
}

// InventoryItems returns held items in ascending id order.
func (a *Agent) InventoryItems() []InventoryItem {
	out := make([]InventoryItem, 0, len(a.inventory))
	for item := range a.inventory {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasAll reports whether the inventory covers every amount in req.
func (a *Agent) HasAll(req map[InventoryItem]int) bool {
	for item, amount := range req {
		if a.inventory[item] < amount {
			return false
		}
	}
	return true
}

// UpdateInventory adds delta to item, clamped to [0, limit], and returns the
// delta actually applied.
func (a *Agent) UpdateInventory(item InventoryItem, delta int) int {
	current := a.inventory[item]
	next := current + delta
	if limit := a.resourceLimits[item]; next > limit {
		next = limit
	}
	if next < 0 {
		next = 0
	}

	applied := next - current
	if next > 0 {
		a.inventory[item] = next
	} else {
		delete(a.inventory, item)
	}

	if applied > 0 {
		a.Stats.Add(a.Stats.InventoryItemName(item)+".gained", float64(applied))
	} else if applied < 0 {
		a.Stats.Add(a.Stats.InventoryItemName(item)+".lost", float64(-applied))
	}

	a.ComputeResourceReward(item)
	return applied
}

// ComputeResourceReward recomputes the whole inventory reward when item
// carries a reward weight, and adds the difference into the reward slot.
// The per-item cap means one item's contribution cannot be patched alone.
func (a *Agent) ComputeResourceReward(item InventoryItem) {
	if _, ok := a.resourceRewards[item]; !ok {
		return
	}

	next := a.inventoryReward()
	a.reward.Add(next - a.CurrentResourceReward)
	a.CurrentResourceReward = next
}

func (a *Agent) inventoryReward() float64 {
	total := 0.0
	for _, item := range a.InventoryItems() {
		w := a.resourceRewards[item]
		if w == 0 {
			continue
		}
		v := float64(a.inventory[item])
		if capAt, ok := a.resourceRewardMax[item]; ok && v > capAt {
			v = capAt
		}
		total += w * v
	}
	return total
}

// Swappable reports whether another agent may trade places with this one.
func (a *Agent) Swappable() bool {
	return a.Frozen > 0
}

func (a *Agent) IsFrozen() bool { return a.Frozen > 0 }
