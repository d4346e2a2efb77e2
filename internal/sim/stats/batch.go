package stats

// Emission is one pending counter update.
type Emission struct {
	Sink   *Tracker
	Label  string
	Amount float64
}

// Batch collects emissions in order and applies them in a single Flush.
// The attack handler builds one per resolved target and flushes it once on
// return. Inventory gain and loss counters are written by the agent directly.
type Batch struct {
	items []Emission
}

func (b *Batch) Incr(sink *Tracker, label string) {
	b.Add(sink, label, 1)
}

func (b *Batch) Add(sink *Tracker, label string, amount float64) {
	if sink == nil || label == "" {
		return
	}
	b.items = append(b.items, Emission{Sink: sink, Label: label, Amount: amount})
}

func (b *Batch) Flush() {
	for _, e := range b.items {
		e.Sink.Add(e.Label, e.Amount)
	}
	b.items = b.items[:0]
}
