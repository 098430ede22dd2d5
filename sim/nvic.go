package sim

// DefaultStormLimit bounds how many times a handler is re-entered for a
// single line assertion.
const DefaultStormLimit = 1 << 16

type line struct {
	level   func() bool
	handler func()
	enabled bool
	pending bool
	active  bool
}

// NVIC models the interrupt controller lines used by the SSI instances.
// With Auto set, an enabled line is serviced synchronously as soon as its
// level goes high; otherwise assertions are latched until Service is called.
type NVIC struct {
	Auto       bool
	StormLimit int

	lines map[uint32]*line

	// Storms counts handler loops cut short by StormLimit
	Storms int
}

// NewNVIC returns an interrupt controller with automatic dispatch.
func NewNVIC() *NVIC {
	return &NVIC{Auto: true, StormLimit: DefaultStormLimit, lines: make(map[uint32]*line)}
}

func (n *NVIC) get(irq uint32) *line {
	l, ok := n.lines[irq]
	if !ok {
		l = &line{}
		n.lines[irq] = l
	}
	return l
}

// Connect attaches an interrupt source and its handler to a line.
func (n *NVIC) Connect(irq uint32, level func() bool, handler func()) {
	l := n.get(irq)
	l.level = level
	l.handler = handler
}

// EnableIRQ implements core.IRQController.
func (n *NVIC) EnableIRQ(irq uint32) {
	n.get(irq).enabled = true
	n.Notify(irq)
}

// DisableIRQ implements core.IRQController.
func (n *NVIC) DisableIRQ(irq uint32) {
	n.get(irq).enabled = false
}

// ClearPendingIRQ implements core.IRQController.
func (n *NVIC) ClearPendingIRQ(irq uint32) {
	n.get(irq).pending = false
}

// Enabled reports whether a line is enabled.
func (n *NVIC) Enabled(irq uint32) bool {
	return n.get(irq).enabled
}

// IsPending reports whether a line has a latched assertion.
func (n *NVIC) IsPending(irq uint32) bool {
	return n.get(irq).pending
}

// Notify tells the controller that the source of irq may have changed level.
func (n *NVIC) Notify(irq uint32) {
	l := n.get(irq)
	if l.level == nil || !l.level() {
		return
	}
	if !n.Auto || !l.enabled {
		l.pending = true
		return
	}
	if l.active {
		// The running handler loop re-checks the level
		return
	}
	n.run(l)
}

// Service runs the handler of irq while its source is asserted, regardless
// of Auto, and returns the number of handler invocations.
func (n *NVIC) Service(irq uint32) int {
	l := n.get(irq)
	if l.active || l.handler == nil {
		return 0
	}
	return n.run(l)
}

func (n *NVIC) run(l *line) int {
	if l.handler == nil {
		l.pending = true
		return 0
	}
	limit := n.StormLimit
	if limit <= 0 {
		limit = DefaultStormLimit
	}
	l.active = true
	l.pending = false
	calls := 0
	for l.level != nil && l.level() {
		if calls == limit {
			n.Storms++
			l.pending = true
			break
		}
		l.handler()
		calls++
	}
	l.active = false
	return calls
}
