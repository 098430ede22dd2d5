package mmio

import "testing"

// wordBank is a plain array of registers with no side effects
type wordBank struct {
	regs [8]uint32
}

func (w *wordBank) Read(off uint32) uint32     { return w.regs[off/4] }
func (w *wordBank) Write(off uint32, v uint32) { w.regs[off/4] = v }
func (w *wordBank) Addr(off uint32) uintptr    { return 0x1000 + uintptr(off) }

func TestSetField(t *testing.T) {
	b := &wordBank{}
	b.regs[1] = 0xFFFF_FFFF

	SetField(b, 4, 0x1F, 16, 7)
	if got := Field(b, 4, 0x1F, 16); got != 7 {
		t.Errorf("Expected field 7, got %d", got)
	}
	// Bits outside the field are untouched
	if b.regs[1]&0xFFFF != 0xFFFF {
		t.Errorf("Low half clobbered: 0x%08X", b.regs[1])
	}
	if b.regs[1]>>21 != 0x7FF {
		t.Errorf("High bits clobbered: 0x%08X", b.regs[1])
	}
}

func TestSetFieldTruncates(t *testing.T) {
	b := &wordBank{}
	SetField(b, 0, 0x3, 4, 0xFF)
	if b.regs[0] != 0x30 {
		t.Errorf("Expected 0x30, got 0x%X", b.regs[0])
	}
}

func TestBits(t *testing.T) {
	b := &wordBank{}
	SetBits(b, 8, 0x5)
	if !HasBits(b, 8, 0x5) {
		t.Error("Expected bits 0x5 set")
	}
	ClearBits(b, 8, 0x1)
	if b.regs[2] != 0x4 {
		t.Errorf("Expected 0x4, got 0x%X", b.regs[2])
	}
	if HasBits(b, 8, 0x5) {
		t.Error("Expected HasBits false after clear")
	}
}
