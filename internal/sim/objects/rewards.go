package objects

// Rewards is the externally owned per-agent reward buffer. The env resets it
// between ticks; agents only ever add into their own slot.
type Rewards struct {
	vals []float64
}

func NewRewards(n int) *Rewards {
	if n < 0 {
		n = 0
	}
	return &Rewards{vals: make([]float64, n)}
}

func (r *Rewards) Len() int { return len(r.vals) }

func (r *Rewards) Slot(i int) RewardSlot {
	if r == nil || i < 0 || i >= len(r.vals) {
		return RewardSlot{}
	}
	return RewardSlot{buf: r, idx: i}
}

func (r *Rewards) Get(i int) float64 {
	if r == nil || i < 0 || i >= len(r.vals) {
		return 0
	}
	return r.vals[i]
}

func (r *Rewards) Set(i int, v float64) {
	if r == nil || i < 0 || i >= len(r.vals) {
		return
	}
	r.vals[i] = v
}

// Values returns a copy of the buffer.
func (r *Rewards) Values() []float64 {
	if r == nil {
		return nil
	}
	return append([]float64(nil), r.vals...)
}

func (r *Rewards) Reset() {
	if r == nil {
		return
	}
	for i := range r.vals {
		r.vals[i] = 0
	}
}

// RewardSlot is an agent's handle into a Rewards buffer. The zero value
// discards writes.
type RewardSlot struct {
	buf *Rewards
	idx int
}

func (s RewardSlot) Add(delta float64) {
	if s.buf == nil {
		return
	}
	s.buf.vals[s.idx] += delta
}

func (s RewardSlot) Value() float64 {
	if s.buf == nil {
		return 0
	}
	return s.buf.vals[s.idx]
}

func (s RewardSlot) Bound() bool { return s.buf != nil }
