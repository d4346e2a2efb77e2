package env

import (
	"fmt"
	"io"
	"log"
	"math/rand"

	"github.com/google/uuid"

	"gridarena.ai/internal/sim/actions"
	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/grid"
	"gridarena.ai/internal/sim/objects"
	"gridarena.ai/internal/sim/stats"
	"gridarena.ai/internal/sim/tuning"
)

// Env is one episode of the arena: a grid, its agents and the handler table.
// It is not safe for concurrent use; callers step it from one goroutine.
type Env struct {
	id     string
	seed   int64
	tune   tuning.Tuning
	cats   *catalogs.Catalogs
	logger *log.Logger

	grid    *grid.Grid
	table   *actions.Table
	agents  []*objects.Agent
	rewards *objects.Rewards

	episodeRewards []float64
	groupSizes     map[uint8]int
	tick           uint64
}

func New(tune tuning.Tuning, cats *catalogs.Catalogs, seed int64, logger *log.Logger) (*Env, error) {
	if cats == nil {
		return nil, fmt.Errorf("env: nil catalogs")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	tune.Normalize()
	if err := tune.Validate(); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}

	g := grid.New(tune.Width, tune.Height)
	table, err := buildTable(tune.Actions, &cats.Items, g)
	if err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}

	e := &Env{
		id:         uuid.NewString(),
		seed:       seed,
		tune:       tune,
		cats:       cats,
		logger:     logger,
		grid:       g,
		table:      table,
		rewards:    objects.NewRewards(tune.Agents()),
		groupSizes: map[uint8]int{},
	}
	e.episodeRewards = make([]float64, e.rewards.Len())

	rng := rand.New(rand.NewSource(seed))
	if err := e.placeAgents(rng); err != nil {
		return nil, fmt.Errorf("env: %w", err)
	}

	// Starting inventory is not a reward event.
	e.rewards.Reset()
	for _, a := range e.agents {
		a.Stats.Reset()
	}

	logger.Printf("episode %s: %d agents on %dx%d grid, actions=%v", e.id, len(e.agents), tune.Width, tune.Height, table.Names())
	return e, nil
}

func buildTable(spec tuning.ActionsSpec, items *catalogs.ItemCatalog, g *grid.Grid) (*actions.Table, error) {
	var hs []actions.Handler
	if spec.Noop.Enabled {
		hs = append(hs, actions.NewNoop(actions.ActionConfig{Name: "noop"}, g))
	}
	if spec.Move.Enabled {
		hs = append(hs, actions.NewMove(actions.ActionConfig{Name: "move"}, g))
	}
	if spec.Rotate.Enabled {
		hs = append(hs, actions.NewRotate(actions.ActionConfig{Name: "rotate"}, g))
	}
	if spec.Swap.Enabled {
		hs = append(hs, actions.NewSwap(actions.ActionConfig{Name: "swap"}, g))
	}
	if spec.Attack.Enabled {
		cfg, err := attackConfig("attack", spec.Attack, items)
		if err != nil {
			return nil, err
		}
		hs = append(hs, actions.NewAttack(cfg, g))
	}
	if spec.AttackNearest.Enabled {
		cfg, err := attackConfig("attack_nearest", spec.AttackNearest, items)
		if err != nil {
			return nil, err
		}
		hs = append(hs, actions.NewAttackNearest(cfg, g))
	}
	if len(hs) == 0 {
		return nil, fmt.Errorf("no actions enabled")
	}
	return actions.NewTable(hs...), nil
}

func attackConfig(name string, spec tuning.AttackSpec, items *catalogs.ItemCatalog) (actions.AttackConfig, error) {
	atk, err := items.Resolve(spec.AttackResources)
	if err != nil {
		return actions.AttackConfig{}, fmt.Errorf("%s attack_resources: %w", name, err)
	}
	def, err := items.Resolve(spec.DefenseResources)
	if err != nil {
		return actions.AttackConfig{}, fmt.Errorf("%s defense_resources: %w", name, err)
	}
	return actions.AttackConfig{
		ActionConfig:     actions.ActionConfig{Name: name},
		AttackResources:  atk,
		DefenseResources: def,
	}, nil
}

func agentConfig(g tuning.GroupSpec, items *catalogs.ItemCatalog) (objects.AgentConfig, error) {
	limits := make(map[objects.InventoryItem]int, len(items.Palette))
	for i := range items.Palette {
		limits[objects.InventoryItem(i)] = g.DefaultResourceLimit
	}
	overrides, err := items.Resolve(g.ResourceLimits)
	if err != nil {
		return objects.AgentConfig{}, fmt.Errorf("group %q resource_limits: %w", g.Name, err)
	}
	for item, lim := range overrides {
		limits[item] = lim
	}
	rewards, err := items.ResolveFloat(g.ResourceRewards)
	if err != nil {
		return objects.AgentConfig{}, fmt.Errorf("group %q resource_rewards: %w", g.Name, err)
	}
	rewardMax, err := items.ResolveFloat(g.ResourceRewardMax)
	if err != nil {
		return objects.AgentConfig{}, fmt.Errorf("group %q resource_reward_max: %w", g.Name, err)
	}
	return objects.AgentConfig{
		TypeID:               0,
		TypeName:             g.TypeName,
		GroupID:              uint8(g.ID),
		GroupName:            g.Name,
		FreezeDuration:       g.FreezeDuration,
		ActionFailurePenalty: g.ActionFailurePenalty,
		ResourceLimits:       limits,
		ResourceRewards:      rewards,
		ResourceRewardMax:    rewardMax,
		GroupRewardPct:       g.GroupRewardPct,
	}, nil
}

func (e *Env) placeAgents(rng *rand.Rand) error {
	cells := rng.Perm(e.grid.Width() * e.grid.Height())
	next := 0
	for _, gs := range e.tune.Groups {
		cfg, err := agentConfig(gs, &e.cats.Items)
		if err != nil {
			return err
		}
		initial, err := e.cats.Items.Resolve(gs.InitialInventory)
		if err != nil {
			return fmt.Errorf("group %q initial_inventory: %w", gs.Name, err)
		}
		for i := 0; i < gs.Count; i++ {
			idx := len(e.agents)
			cell := cells[next]
			next++
			loc := grid.Location{R: cell / e.grid.Width(), C: cell % e.grid.Width(), Layer: grid.AgentLayer}

			a := objects.NewAgent(idx, loc, cfg, &e.cats.Items)
			a.AgentID = idx
			a.Color = uint8(gs.ID)
			a.Orientation = grid.Orientation(rng.Intn(4))
			a.Init(e.rewards.Slot(idx))
			if !e.grid.Add(a) {
				return fmt.Errorf("place agent %d at %+v", idx, loc)
			}
			for item, amount := range initial {
				a.UpdateInventory(item, amount)
			}
			e.agents = append(e.agents, a)
			e.groupSizes[a.Group]++
		}
	}
	return nil
}

func (e *Env) ID() string                 { return e.id }
func (e *Env) Seed() int64                { return e.seed }
func (e *Env) Tick() uint64               { return e.tick }
func (e *Env) Tuning() tuning.Tuning      { return e.tune }
func (e *Env) Grid() *grid.Grid           { return e.grid }
func (e *Env) Table() *actions.Table      { return e.table }
func (e *Env) NumAgents() int             { return len(e.agents) }
func (e *Env) Done() bool                 { return e.tick >= uint64(e.tune.MaxSteps) }
func (e *Env) Rewards() []float64         { return e.rewards.Values() }
func (e *Env) Agents() []*objects.Agent   { return append([]*objects.Agent(nil), e.agents...) }
func (e *Env) ItemNamer() stats.ItemNamer { return &e.cats.Items }

func (e *Env) ItemPalette() []string {
	return append([]string(nil), e.cats.Items.Palette...)
}

func (e *Env) Agent(i int) *objects.Agent {
	if i < 0 || i >= len(e.agents) {
		return nil
	}
	return e.agents[i]
}

func (e *Env) EpisodeRewards() []float64 {
	return append([]float64(nil), e.episodeRewards...)
}

// Observations returns each agent's freshly projected feature tokens.
func (e *Env) Observations() [][]objects.ObservationToken {
	out := make([][]objects.ObservationToken, len(e.agents))
	for i, a := range e.agents {
		out[i] = a.ObsFeatures()
	}
	return out
}

// SampleActions draws one uniformly random action per agent. Arguments are
// drawn from [0, MaxArg] so invalid ones are possible.
func (e *Env) SampleActions(rng *rand.Rand) []actions.Request {
	out := make([]actions.Request, len(e.agents))
	for i := range e.agents {
		id := rng.Intn(e.table.Len())
		out[i] = actions.Request{
			Agent:    i,
			ActionID: id,
			Arg:      rng.Intn(e.table.At(id).MaxArg() + 1),
		}
	}
	return out
}
