package env

import (
	"math"
	"math/rand"
	"testing"

	"gridarena.ai/internal/sim/actions"
	"gridarena.ai/internal/sim/catalogs"
	"gridarena.ai/internal/sim/grid"
	"gridarena.ai/internal/sim/tuning"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.FromDefs([]catalogs.ItemDef{
		{ID: "laser", Kind: "WEAPON"},
		{ID: "armor", Kind: "ARMOR"},
		{ID: "heart", Kind: "REWARD"},
	})
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return cats
}

func duelTuning() tuning.Tuning {
	return tuning.Tuning{
		MaxSteps: 3,
		Width:    2,
		Height:   1,
		Groups: []tuning.GroupSpec{
			{ID: 0, Name: "red", Count: 1, FreezeDuration: 5, DefaultResourceLimit: 50, InitialInventory: map[string]int{"laser": 2}},
			{ID: 1, Name: "blue", Count: 1, FreezeDuration: 5, DefaultResourceLimit: 50, InitialInventory: map[string]int{"laser": 2}},
		},
		Actions: tuning.ActionsSpec{
			Noop: tuning.ActionSpec{Enabled: true},
			Move: tuning.ActionSpec{Enabled: true},
			Attack: tuning.AttackSpec{
				Enabled:          true,
				AttackResources:  map[string]int{"laser": 1},
				DefenseResources: map[string]int{"armor": 1},
			},
		},
	}
}

func actionID(t *testing.T, e *Env, name string) int {
	t.Helper()
	id, ok := e.Table().Index(name)
	if !ok {
		t.Fatalf("action %q not in table %v", name, e.Table().Names())
	}
	return id
}

// face turns a toward b; both agents sit on a one-row grid.
func face(e *Env, a, b int) {
	if e.Agent(b).Loc().C < e.Agent(a).Loc().C {
		e.Agent(a).Orientation = grid.Left
	} else {
		e.Agent(a).Orientation = grid.Right
	}
}

func TestNew_RepoConfig(t *testing.T) {
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	e, err := New(tune, cats, 42, nil)
	if err != nil {
		t.Fatalf("new env: %v", err)
	}
	if e.NumAgents() != 8 || e.Grid().Len() != 8 {
		t.Fatalf("agents=%d grid=%d", e.NumAgents(), e.Grid().Len())
	}
	if e.ID() == "" {
		t.Fatalf("missing episode id")
	}

	laser, _ := cats.Items.ItemID("laser")
	seen := map[grid.Location]bool{}
	for i, a := range e.Agents() {
		if !e.Grid().InBounds(a.Loc()) || seen[a.Loc()] {
			t.Fatalf("agent %d bad location %+v", i, a.Loc())
		}
		seen[a.Loc()] = true
		if a.AgentID != i {
			t.Fatalf("agent %d has AgentID %d", i, a.AgentID)
		}
		if a.Amount(laser) != 3 {
			t.Fatalf("agent %d laser=%d want 3", i, a.Amount(laser))
		}
		if a.Stats.Len() != 0 {
			t.Fatalf("agent %d stats not reset: %v", i, a.Stats.Snapshot())
		}
	}
	for i, r := range e.Rewards() {
		if r != 0 {
			t.Fatalf("reward[%d]=%v want 0 before first step", i, r)
		}
	}
	for i, obs := range e.Observations() {
		if len(obs) < 5 {
			t.Fatalf("agent %d obs=%v", i, obs)
		}
	}
}

func TestNew_SameSeedSamePlacement(t *testing.T) {
	cats := testCatalogs(t)
	tune := tuning.Defaults()
	tune.Groups[0].InitialInventory = nil
	tune.Groups[1].InitialInventory = nil
	a, err := New(tune, cats, 7, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(tune, cats, 7, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < a.NumAgents(); i++ {
		if a.Agent(i).Loc() != b.Agent(i).Loc() || a.Agent(i).Orientation != b.Agent(i).Orientation {
			t.Fatalf("agent %d placement differs", i)
		}
	}
	if a.ID() == b.ID() {
		t.Fatalf("episode ids should be unique")
	}
}

func TestNew_UnknownItem(t *testing.T) {
	tune := duelTuning()
	tune.Groups[0].InitialInventory = map[string]int{"mithril": 1}
	if _, err := New(tune, testCatalogs(t), 1, nil); err == nil {
		t.Fatalf("expected unknown item error")
	}
}

func TestNew_NoActions(t *testing.T) {
	tune := duelTuning()
	tune.Actions = tuning.ActionsSpec{}
	if _, err := New(tune, testCatalogs(t), 1, nil); err == nil {
		t.Fatalf("expected error with no actions enabled")
	}
}

func TestStep_PriorityOrder(t *testing.T) {
	e, err := New(duelTuning(), testCatalogs(t), 3, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	face(e, 1, 0)

	// Agent 0's move is listed first but attack outranks it.
	sum := e.Step([]actions.Request{
		{Agent: 0, ActionID: actionID(t, e, "move"), Arg: 0},
		{Agent: 1, ActionID: actionID(t, e, "attack"), Arg: 2},
	})
	if sum.Success[0] || !sum.Success[1] {
		t.Fatalf("success=%v want [false true]", sum.Success)
	}
	if got := e.Agent(0).Frozen; got != 4 {
		t.Fatalf("frozen=%d want 4 after one frozen tick", got)
	}
	if sum.Frozen != 1 {
		t.Fatalf("summary frozen=%d want 1", sum.Frozen)
	}
	laser, _ := testCatalogs(t).Items.ItemID("laser")
	if e.Agent(1).Amount(laser) != 3 || e.Agent(0).Amount(laser) != 0 {
		t.Fatalf("laser a0=%d a1=%d want 0/3", e.Agent(0).Amount(laser), e.Agent(1).Amount(laser))
	}
	if sum.ActionCounts["attack"] != 1 || sum.ActionCounts["move"] != 1 {
		t.Fatalf("counts=%v", sum.ActionCounts)
	}
	if sum.Tick != 1 || sum.EpisodeID != e.ID() {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestStep_OnlyFirstRequestPerAgent(t *testing.T) {
	e, err := New(duelTuning(), testCatalogs(t), 3, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	noop := actionID(t, e, "noop")
	sum := e.Step([]actions.Request{
		{Agent: 0, ActionID: noop, Arg: 0},
		{Agent: 0, ActionID: noop, Arg: 0},
		{Agent: 9, ActionID: noop, Arg: 0},
		{Agent: 1, ActionID: 99, Arg: 0},
	})
	if sum.ActionCounts["noop"] != 1 {
		t.Fatalf("counts=%v want one noop", sum.ActionCounts)
	}
	if !sum.Success[0] || sum.Success[1] {
		t.Fatalf("success=%v", sum.Success)
	}
}

func TestStep_GroupRewardSharing(t *testing.T) {
	tune := tuning.Tuning{
		MaxSteps: 10,
		Width:    3,
		Height:   1,
		Groups: []tuning.GroupSpec{
			{ID: 0, Name: "red", Count: 1, ActionFailurePenalty: 1},
			{ID: 1, Name: "blue", Count: 2, ActionFailurePenalty: 1, GroupRewardPct: 0.5},
		},
		Actions: tuning.ActionsSpec{Noop: tuning.ActionSpec{Enabled: true}},
	}
	e, err := New(tune, testCatalogs(t), 1, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	noop := actionID(t, e, "noop")
	sum := e.Step([]actions.Request{
		{Agent: 0, ActionID: noop, Arg: 1},
		{Agent: 1, ActionID: noop, Arg: 1},
		{Agent: 2, ActionID: noop, Arg: 0},
	})
	want := []float64{-1, -0.75, -0.25}
	for i, w := range want {
		if math.Abs(sum.Rewards[i]-w) > 1e-9 {
			t.Fatalf("rewards=%v want %v", sum.Rewards, want)
		}
	}
	ep := e.EpisodeRewards()
	if math.Abs(ep[1]+0.75) > 1e-9 {
		t.Fatalf("episode rewards=%v", ep)
	}

	// The buffer is cleared at the start of every step.
	sum = e.Step([]actions.Request{{Agent: 0, ActionID: noop, Arg: 0}})
	for i, r := range sum.Rewards {
		if r != 0 {
			t.Fatalf("reward[%d]=%v want 0 on a quiet tick", i, r)
		}
	}
	if math.Abs(e.EpisodeRewards()[0]+1) > 1e-9 {
		t.Fatalf("episode reward should accumulate: %v", e.EpisodeRewards())
	}
}

func TestStep_SwapWithFrozenOpponent(t *testing.T) {
	tune := duelTuning()
	tune.Actions.Swap = tuning.ActionSpec{Enabled: true}
	e, err := New(tune, testCatalogs(t), 5, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	face(e, 0, 1)
	swap := actionID(t, e, "swap")
	before0, before1 := e.Agent(0).Loc(), e.Agent(1).Loc()

	if sum := e.Step([]actions.Request{{Agent: 0, ActionID: swap}}); sum.Success[0] {
		t.Fatalf("swap with an active opponent succeeded")
	}
	e.Step([]actions.Request{{Agent: 0, ActionID: actionID(t, e, "attack"), Arg: 2}})
	if !e.Agent(1).IsFrozen() {
		t.Fatalf("opponent not frozen")
	}
	if sum := e.Step([]actions.Request{{Agent: 0, ActionID: swap}}); !sum.Success[0] {
		t.Fatalf("swap with frozen opponent failed")
	}
	if e.Agent(0).Loc() != before1 || e.Agent(1).Loc() != before0 {
		t.Fatalf("positions not exchanged: %+v %+v", e.Agent(0).Loc(), e.Agent(1).Loc())
	}
}

func TestStep_Done(t *testing.T) {
	e, err := New(duelTuning(), testCatalogs(t), 3, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 1; i <= 3; i++ {
		sum := e.Step(nil)
		if sum.Done != (i == 3) {
			t.Fatalf("tick %d done=%v", i, sum.Done)
		}
	}
	if !e.Done() || e.Tick() != 3 {
		t.Fatalf("done=%v tick=%d", e.Done(), e.Tick())
	}
}

func TestSampleActions_InRange(t *testing.T) {
	e, err := New(duelTuning(), testCatalogs(t), 3, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rng := rand.New(rand.NewSource(9))
	for n := 0; n < 50; n++ {
		reqs := e.SampleActions(rng)
		if len(reqs) != e.NumAgents() {
			t.Fatalf("reqs=%d", len(reqs))
		}
		for _, r := range reqs {
			h := e.Table().At(r.ActionID)
			if h == nil || r.Arg < 0 || r.Arg > h.MaxArg() {
				t.Fatalf("bad request %+v", r)
			}
		}
		e.Step(reqs)
	}
}

func TestStats_GroupAggregates(t *testing.T) {
	e, err := New(duelTuning(), testCatalogs(t), 3, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	noop := actionID(t, e, "noop")
	e.Step([]actions.Request{{Agent: 0, ActionID: noop}, {Agent: 1, ActionID: noop}})
	per := e.Stats()
	if len(per) != 2 || per[0].Group != "red" || per[1].Group != "blue" {
		t.Fatalf("stats=%+v", per)
	}
	if per[0].Values["action.noop.success"] != 1 {
		t.Fatalf("agent 0 stats=%v", per[0].Values)
	}
	groups := e.GroupStats()
	if groups["blue"]["action.noop.success"] != 1 {
		t.Fatalf("group stats=%v", groups)
	}
	if names := e.GroupNames(); len(names) != 2 || names[0] != "red" {
		t.Fatalf("group names=%v", names)
	}
}

func TestStep_DeterministicDigest(t *testing.T) {
	cats := testCatalogs(t)
	tune := tuning.Defaults()
	a, err := New(tune, cats, 21, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	b, err := New(tune, cats, 21, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rng := rand.New(rand.NewSource(5))
	for i := 0; i < 200; i++ {
		reqs := a.SampleActions(rng)
		sa, sb := a.Step(reqs), b.Step(reqs)
		if sa.Digest == "" || sa.Digest != sb.Digest {
			t.Fatalf("tick %d digest mismatch: %s vs %s", sa.Tick, sa.Digest, sb.Digest)
		}
		if len(sa.Actions) != len(reqs) {
			t.Fatalf("actions not recorded: %d", len(sa.Actions))
		}
	}
}
