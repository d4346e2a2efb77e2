package env

import (
	"gridarena.ai/internal/sim/actions"
	"gridarena.ai/internal/sim/stats"
)

// TickSummary is the per-tick record handed to loggers, the index and
// observers. It owns its slices. Actions holds the requests exactly as
// submitted, so a replay can feed them back in.
type TickSummary struct {
	EpisodeID    string            `json:"episode_id"`
	Tick         uint64            `json:"tick"`
	Digest       string            `json:"digest"`
	Actions      []actions.Request `json:"actions,omitempty"`
	Rewards      []float64         `json:"rewards"`
	Success      []bool            `json:"success"`
	ActionCounts map[string]int    `json:"action_counts"`
	Frozen       int               `json:"frozen"`
	Done         bool              `json:"done"`
}

// Step resolves one tick. The reward buffer is cleared first, then each
// request runs to completion in priority order before the next begins.
// Agents without a request do nothing; only an agent's first request counts.
func (e *Env) Step(reqs []actions.Request) TickSummary {
	e.rewards.Reset()

	success := make([]bool, len(e.agents))
	seen := make([]bool, len(e.agents))
	counts := map[string]int{}
	for _, r := range e.table.Order(reqs) {
		if r.Agent < 0 || r.Agent >= len(e.agents) || seen[r.Agent] {
			continue
		}
		seen[r.Agent] = true
		h := e.table.At(r.ActionID)
		if h == nil {
			continue
		}
		counts[h.Name()]++
		success[r.Agent] = actions.Run(h, e.agents[r.Agent], r.Arg)
	}

	e.shareGroupRewards()

	rewards := e.rewards.Values()
	frozen := 0
	for i, a := range e.agents {
		e.episodeRewards[i] += rewards[i]
		if a.IsFrozen() {
			frozen++
		}
	}
	e.tick++

	return TickSummary{
		EpisodeID:    e.id,
		Tick:         e.tick,
		Digest:       e.stateDigest(),
		Actions:      append([]actions.Request(nil), reqs...),
		Rewards:      rewards,
		Success:      success,
		ActionCounts: counts,
		Frozen:       frozen,
		Done:         e.Done(),
	}
}

// shareGroupRewards moves each agent's group_reward_pct share of its tick
// reward into a group pool split evenly among the group.
func (e *Env) shareGroupRewards() {
	pools := map[uint8]float64{}
	shared := false
	for i, a := range e.agents {
		if a.GroupRewardPct == 0 {
			continue
		}
		r := e.rewards.Get(i)
		part := r * a.GroupRewardPct
		pools[a.Group] += part
		e.rewards.Set(i, r-part)
		shared = true
	}
	if !shared {
		return
	}
	for i, a := range e.agents {
		pool, ok := pools[a.Group]
		if !ok {
			continue
		}
		e.rewards.Set(i, e.rewards.Get(i)+pool/float64(e.groupSizes[a.Group]))
	}
}

type AgentStats struct {
	Agent  int                `json:"agent"`
	Group  string             `json:"group"`
	Reward float64            `json:"reward"`
	Values map[string]float64 `json:"values"`
}

// Stats snapshots every agent's counters.
func (e *Env) Stats() []AgentStats {
	out := make([]AgentStats, len(e.agents))
	for i, a := range e.agents {
		out[i] = AgentStats{
			Agent:  i,
			Group:  a.GroupName,
			Reward: e.episodeRewards[i],
			Values: a.Stats.Snapshot(),
		}
	}
	return out
}

// GroupStats sums agent counters per group.
func (e *Env) GroupStats() map[string]map[string]float64 {
	byGroup := map[string][]map[string]float64{}
	for _, a := range e.agents {
		byGroup[a.GroupName] = append(byGroup[a.GroupName], a.Stats.Snapshot())
	}
	out := make(map[string]map[string]float64, len(byGroup))
	for g, snaps := range byGroup {
		out[g] = stats.Merge(snaps...)
	}
	return out
}

// GroupNames lists groups in configuration order.
func (e *Env) GroupNames() []string {
	out := make([]string, 0, len(e.tune.Groups))
	for _, g := range e.tune.Groups {
		out = append(out, g.Name)
	}
	return out
}

// EpisodeSummary is written once when an episode ends.
type EpisodeSummary struct {
	EpisodeID string                        `json:"episode_id"`
	Seed      int64                         `json:"seed"`
	Ticks     uint64                        `json:"ticks"`
	Rewards   []float64                     `json:"rewards"`
	Agents    []AgentStats                  `json:"agents"`
	Groups    map[string]map[string]float64 `json:"groups"`
}

func (e *Env) Summary() EpisodeSummary {
	return EpisodeSummary{
		EpisodeID: e.id,
		Seed:      e.seed,
		Ticks:     e.tick,
		Rewards:   e.EpisodeRewards(),
		Agents:    e.Stats(),
		Groups:    e.GroupStats(),
	}
}
