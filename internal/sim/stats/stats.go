package stats

import (
	"sort"
	"strconv"
)

// ItemNamer maps an inventory item id to the name used in stat labels.
type ItemNamer interface {
	ItemName(item uint8) string
}

// Tracker is a per-agent counter set keyed by hierarchical dot-separated labels.
type Tracker struct {
	names ItemNamer
	vals  map[string]float64
}

func NewTracker(names ItemNamer) *Tracker {
	return &Tracker{names: names, vals: map[string]float64{}}
}

func (t *Tracker) Incr(label string) {
	t.Add(label, 1)
}

func (t *Tracker) Add(label string, amount float64) {
	if t == nil || label == "" {
		return
	}
	if t.vals == nil {
		t.vals = map[string]float64{}
	}
	t.vals[label] += amount
}

func (t *Tracker) Get(label string) float64 {
	if t == nil {
		return 0
	}
	return t.vals[label]
}

// InventoryItemName falls back to the numeric id when no catalog is attached.
func (t *Tracker) InventoryItemName(item uint8) string {
	if t != nil && t.names != nil {
		if n := t.names.ItemName(item); n != "" {
			return n
		}
	}
	return "item_" + strconv.Itoa(int(item))
}

func (t *Tracker) Len() int {
	if t == nil {
		return 0
	}
	return len(t.vals)
}

// Snapshot returns a copy of all counters.
func (t *Tracker) Snapshot() map[string]float64 {
	out := make(map[string]float64, t.Len())
	if t == nil {
		return out
	}
	for k, v := range t.vals {
		out[k] = v
	}
	return out
}

// Labels returns all labels in sorted order.
func (t *Tracker) Labels() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.vals))
	for k := range t.vals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.vals = map[string]float64{}
}

// Merge sums several snapshots into one.
func Merge(snaps ...map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for _, s := range snaps {
		for k, v := range s {
			out[k] += v
		}
	}
	return out
}
