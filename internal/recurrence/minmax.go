package recurrence

type slot struct {
	idx int
	v   float64
}

// deque is a monotonic queue of window slots. The backing slice is compacted
// lazily so pushes stay amortized O(1).
type deque struct {
	items []slot
	head  int
}

func (d *deque) empty() bool     { return d.head == len(d.items) }
func (d *deque) front() slot     { return d.items[d.head] }
func (d *deque) back() slot      { return d.items[len(d.items)-1] }
func (d *deque) popFront()       { d.head++ }
func (d *deque) popBack()        { d.items = d.items[:len(d.items)-1] }
func (d *deque) pushBack(s slot) { d.items = append(d.items, s) }

func (d *deque) compact(limit int) {
	if d.head < limit {
		return
	}
	n := copy(d.items, d.items[d.head:])
	d.items = d.items[:n]
	d.head = 0
}

func (d deque) clone() deque {
	items := make([]slot, len(d.items)-d.head, cap(d.items))
	copy(items, d.items[d.head:])
	return deque{items: items}
}

// MinMax tracks the highest and lowest value of the last n inputs together
// with their age in bars (0 = the newest input). On ties the most recent
// index wins.
type MinMax struct {
	n     int
	count int
	hi    deque
	lo    deque
}

// NewMinMax creates a running min/max over n inputs.
func NewMinMax(n int) (*MinMax, error) {
	if err := checkPeriod("minmax", "n", n); err != nil {
		return nil, err
	}
	return &MinMax{
		n:  n,
		hi: deque{items: make([]slot, 0, n+1)},
		lo: deque{items: make([]slot, 0, n+1)},
	}, nil
}

// Update pushes x into the window.
func (m *MinMax) Update(x float64) {
	idx := m.count
	m.count++

	for !m.hi.empty() && m.hi.back().v <= x {
		m.hi.popBack()
	}
	m.hi.pushBack(slot{idx: idx, v: x})
	for !m.lo.empty() && m.lo.back().v >= x {
		m.lo.popBack()
	}
	m.lo.pushBack(slot{idx: idx, v: x})

	oldest := idx - m.n + 1
	for m.hi.front().idx < oldest {
		m.hi.popFront()
	}
	for m.lo.front().idx < oldest {
		m.lo.popFront()
	}
	m.hi.compact(m.n)
	m.lo.compact(m.n)
}

// Max returns the window maximum and its age. Zero values before any input.
func (m *MinMax) Max() (float64, int) {
	if m.count == 0 {
		return 0, 0
	}
	s := m.hi.front()
	return s.v, m.count - 1 - s.idx
}

// Min returns the window minimum and its age. Zero values before any input.
func (m *MinMax) Min() (float64, int) {
	if m.count == 0 {
		return 0, 0
	}
	s := m.lo.front()
	return s.v, m.count - 1 - s.idx
}

// Ready reports whether the window holds n inputs.
func (m *MinMax) Ready() bool { return m.count >= m.n }

// Period returns n.
func (m *MinMax) Period() int { return m.n }

func (m *MinMax) Clone() *MinMax {
	c := *m
	c.hi = m.hi.clone()
	c.lo = m.lo.clone()
	return &c
}
