package actions

import (
	"gridarena.ai/internal/sim/objects"
	"gridarena.ai/internal/sim/stats"
)

type AttackConfig struct {
	ActionConfig
	// AttackResources is paid by the attacker for every attempt.
	AttackResources map[objects.InventoryItem]int
	// DefenseResources blocks the attack when the target holds all of it.
	DefenseResources map[objects.InventoryItem]int
}

// Attack targets one cell of the 3x3 cone in front of the actor.
type Attack struct {
	base
	attackResources  map[objects.InventoryItem]int
	defenseResources map[objects.InventoryItem]int
}

func NewAttack(cfg AttackConfig, g Grid) *Attack {
	return &Attack{
		base:             newBase(cfg.ActionConfig, "attack", 1, g),
		attackResources:  copyResources(cfg.AttackResources),
		defenseResources: copyResources(cfg.DefenseResources),
	}
}

func (h *Attack) MaxArg() int { return 9 }

// HandleAction decodes arg 1..9 into distance 1..3 and a left/center/right
// lateral offset.
func (h *Attack) HandleAction(actor *objects.Agent, arg int) bool {
	if arg < 1 || arg > 9 {
		return false
	}
	if !h.payAttack(actor) {
		return false
	}

	distance := 1 + (arg-1)/3
	offset := -((arg-1)%3 - 1)
	loc := h.grid.RelativeLocation(actor.Loc(), actor.Orientation, distance, offset)
	return h.handleTarget(actor, agentAt(h.grid, loc))
}

// payAttack checks every cost before deducting any of it.
func (h *Attack) payAttack(actor *objects.Agent) bool {
	if !actor.HasAll(h.attackResources) {
		return false
	}
	for _, item := range sortedItems(h.attackResources) {
		actor.UpdateInventory(item, -h.attackResources[item])
	}
	return true
}

func (h *Attack) blocks(target *objects.Agent) bool {
	return len(h.defenseResources) > 0 && target.HasAll(h.defenseResources)
}

// handleTarget resolves the attack once costs are paid. It reports false only
// when no agent was found.
func (h *Attack) handleTarget(actor, target *objects.Agent) bool {
	if target == nil {
		return false
	}

	var b stats.Batch
	defer b.Flush()

	ag, tg := actor.GroupName, target.GroupName
	prefix := "action." + h.name + "." + target.TypeName
	b.Incr(actor.Stats, prefix)
	b.Incr(actor.Stats, prefix+"."+ag)
	b.Incr(actor.Stats, prefix+"."+ag+"."+tg)
	sameTeam := ag == tg
	if sameTeam {
		b.Incr(actor.Stats, "attack.own_team."+ag)
	} else {
		b.Incr(actor.Stats, "attack.other_team."+ag)
	}

	wasFrozen := target.Frozen > 0

	if h.blocks(target) {
		for _, item := range sortedItems(h.defenseResources) {
			target.UpdateInventory(item, -h.defenseResources[item])
		}
		b.Incr(actor.Stats, "attack.blocked."+tg)
		b.Incr(actor.Stats, "attack.blocked."+tg+"."+ag)
		return true
	}

	target.Frozen = target.FreezeDuration
	if wasFrozen {
		return true
	}

	b.Incr(actor.Stats, "attack.win."+ag)
	b.Incr(actor.Stats, "attack.win."+ag+"."+tg)
	b.Incr(target.Stats, "attack.loss."+tg)
	b.Incr(target.Stats, "attack.loss."+tg+"."+ag)
	if sameTeam {
		b.Incr(actor.Stats, "attack.win.own_team."+ag)
		b.Incr(target.Stats, "attack.loss.from_own_team."+tg)
	} else {
		b.Incr(actor.Stats, "attack.win.other_team."+ag)
		b.Incr(target.Stats, "attack.loss.from_other_team."+tg)
	}

	// Snapshot first: the updates below delete emptied entries.
	loot := target.Inventory()
	for _, item := range target.InventoryItems() {
		stolen := actor.UpdateInventory(item, loot[item])
		target.UpdateInventory(item, -stolen)
		if stolen > 0 {
			name := actor.Stats.InventoryItemName(item)
			b.Add(actor.Stats, name+".stolen."+ag, float64(stolen))
			b.Add(target.Stats, target.Stats.InventoryItemName(item)+".stolen_from."+tg, float64(stolen))
		}
	}
	return true
}

// AttackNearest spends the attack cost and strikes the nearest agent in the
// cone, preferring the center column at each distance.
type AttackNearest struct {
	*Attack
}

func NewAttackNearest(cfg AttackConfig, g Grid) *AttackNearest {
	if cfg.Name == "" {
		cfg.Name = "attack_nearest"
	}
	return &AttackNearest{Attack: NewAttack(cfg, g)}
}

func (h *AttackNearest) MaxArg() int { return 0 }

func (h *AttackNearest) HandleAction(actor *objects.Agent, arg int) bool {
	if arg != 0 {
		return false
	}
	if !h.payAttack(actor) {
		return false
	}
	for distance := 1; distance <= 3; distance++ {
		for _, offset := range [3]int{0, 1, -1} {
			loc := h.grid.RelativeLocation(actor.Loc(), actor.Orientation, distance, offset)
			if target := agentAt(h.grid, loc); target != nil {
				return h.handleTarget(actor, target)
			}
		}
	}
	return false
}
