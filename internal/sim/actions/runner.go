package actions

import (
	"math"
	"sort"

	"gridarena.ai/internal/sim/objects"
)

// Run is the step loop's entry point for one agent's action. Frozen agents
// only count down; otherwise the handler runs and its outcome is recorded on
// the actor, with the group's failure penalty charged on failure.
func Run(h Handler, actor *objects.Agent, arg int) bool {
	if actor.Frozen > 0 {
		actor.Frozen--
		actor.Stats.Incr("status.frozen.ticks")
		actor.Stats.Incr("status.frozen.ticks." + actor.GroupName)
		return false
	}

	ok := h.HandleAction(actor, arg)
	if ok {
		actor.Stats.Incr("action." + h.Name() + ".success")
		return true
	}
	actor.Stats.Incr("action." + h.Name() + ".failed")
	actor.Stats.Incr("action.failure_penalty")
	actor.Reward().Add(-actor.ActionFailurePenalty)
	return false
}

// Table is the closed set of handlers an env exposes, indexed by action id.
type Table struct {
	handlers []Handler
	byName   map[string]int
}

func NewTable(hs ...Handler) *Table {
	t := &Table{byName: map[string]int{}}
	for _, h := range hs {
		if h == nil {
			continue
		}
		if _, dup := t.byName[h.Name()]; dup {
			continue
		}
		t.byName[h.Name()] = len(t.handlers)
		t.handlers = append(t.handlers, h)
	}
	return t
}

func (t *Table) Len() int { return len(t.handlers) }

func (t *Table) At(id int) Handler {
	if id < 0 || id >= len(t.handlers) {
		return nil
	}
	return t.handlers[id]
}

func (t *Table) Index(name string) (int, bool) {
	id, ok := t.byName[name]
	return id, ok
}

func (t *Table) Names() []string {
	out := make([]string, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.Name()
	}
	return out
}

func (t *Table) MaxArgs() []int {
	out := make([]int, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.MaxArg()
	}
	return out
}

// Request is one agent's chosen action for a tick.
type Request struct {
	Agent    int `json:"agent"`
	ActionID int `json:"action"`
	Arg      int `json:"arg"`
}

// Order sorts requests by handler priority, highest first; ties keep agent
// order. Requests naming unknown actions sort last.
func (t *Table) Order(reqs []Request) []Request {
	out := append([]Request(nil), reqs...)
	prio := func(r Request) int {
		if h := t.At(r.ActionID); h != nil {
			return h.Priority()
		}
		return math.MinInt
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := prio(out[i]), prio(out[j])
		if pi != pj {
			return pi > pj
		}
		return out[i].Agent < out[j].Agent
	})
	return out
}
