package sim

import "testing"

func TestNVICAutoDispatch(t *testing.T) {
	n := NewNVIC()
	level := 0
	calls := 0
	n.Connect(5, func() bool { return level > 0 }, func() {
		calls++
		level--
	})

	level = 3
	n.Notify(5)
	if calls != 0 {
		t.Errorf("Expected disabled line to latch, got %d calls", calls)
	}
	if !n.IsPending(5) {
		t.Error("Expected line pending while disabled")
	}

	n.EnableIRQ(5)
	if calls != 3 {
		t.Errorf("Expected handler run until the source deasserts (3 calls), got %d", calls)
	}
	if n.IsPending(5) {
		t.Error("Expected pending cleared after service")
	}
}

func TestNVICManualService(t *testing.T) {
	n := NewNVIC()
	n.Auto = false
	level := 2
	calls := 0
	n.Connect(9, func() bool { return level > 0 }, func() {
		calls++
		level--
	})
	n.EnableIRQ(9)
	if calls != 0 || !n.IsPending(9) {
		t.Fatalf("Expected latched assertion, got calls=%d pending=%v", calls, n.IsPending(9))
	}
	if got := n.Service(9); got != 2 {
		t.Errorf("Expected 2 handler calls, got %d", got)
	}
	n.ClearPendingIRQ(9)
	if n.IsPending(9) {
		t.Error("Expected pending cleared")
	}
}

func TestNVICReentrancy(t *testing.T) {
	n := NewNVIC()
	level := 2
	depth, maxDepth := 0, 0
	n.Connect(1, func() bool { return level > 0 }, func() {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		level--
		n.Notify(1)
		depth--
	})
	n.EnableIRQ(1)
	if maxDepth != 1 {
		t.Errorf("Expected handler never nested, got depth %d", maxDepth)
	}
	if level != 0 {
		t.Errorf("Expected source drained, level %d", level)
	}
}

func TestNVICStormLimit(t *testing.T) {
	n := NewNVIC()
	n.StormLimit = 10
	calls := 0
	n.Connect(2, func() bool { return true }, func() { calls++ })
	n.EnableIRQ(2)
	if calls != 10 {
		t.Errorf("Expected 10 calls, got %d", calls)
	}
	if n.Storms != 1 || !n.IsPending(2) {
		t.Errorf("Expected one storm with the line left pending, got storms=%d pending=%v", n.Storms, n.IsPending(2))
	}

	n.DisableIRQ(2)
	if n.Enabled(2) {
		t.Error("Expected line disabled")
	}
}
