package udma

import (
	"errors"
	"testing"
)

// regBank records register writes and serves reads from the last write
type regBank struct {
	regs   map[uint32]uint32
	writes []write
}

type write struct {
	off uint32
	v   uint32
}

func newRegBank() *regBank {
	return &regBank{regs: make(map[uint32]uint32)}
}

func (r *regBank) Read(off uint32) uint32 { return r.regs[off] }
func (r *regBank) Write(off uint32, v uint32) {
	r.regs[off] = v
	r.writes = append(r.writes, write{off, v})
}
func (r *regBank) Addr(off uint32) uintptr { return 0x2000_0000 + uintptr(off) }

func (r *regBank) wrote(off, v uint32) bool {
	for _, w := range r.writes {
		if w.off == off && w.v == v {
			return true
		}
	}
	return false
}

func TestBeatField(t *testing.T) {
	tests := []struct {
		num  uint32
		want uint16
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{1023, 1022},
		{1024, 0x3FF},
		{5000, 0x3FF},
	}
	for _, tt := range tests {
		if got := BeatField(tt.num); got != tt.want {
			t.Errorf("BeatField(%d): expected %d, got %d", tt.num, tt.want, got)
		}
	}
}

func TestControlWord(t *testing.T) {
	cfg := ChannelConfig{
		TransferType:       ModeBasic,
		TotalNumOfDMATrans: 9,
		RPower:             Arb1,
		SrcSize:            Size16,
		SrcInc:             Inc16,
		DstSize:            Size16,
		DstInc:             IncNone,
	}
	// dst_inc=3, dst_size=1, src_inc=1, src_size=1, n_minus_1=9, cycle=1
	want := uint32(3)<<30 | 1<<28 | 1<<26 | 1<<24 | 9<<4 | 1
	if got := cfg.ControlWord(); got != want {
		t.Errorf("Expected 0x%08X, got 0x%08X", want, got)
	}

	cfg = ChannelConfig{NextBurst: true, TotalNumOfDMATrans: 0xFFFF, SrcProtCtrl: 0xF}
	got := cfg.ControlWord()
	if got&(1<<3) == 0 {
		t.Error("Expected next_useburst bit")
	}
	if (got>>4)&0x3FF != 0x3FF || got&(1<<14) != 0 {
		t.Errorf("n_minus_1 overflowed into R_power: 0x%08X", got)
	}
	if (got>>18)&0x7 != 0x7 || (got>>21)&0x7 != 0 {
		t.Errorf("src_prot overflowed into dst_prot: 0x%08X", got)
	}
}

func TestValidate(t *testing.T) {
	buf := make([]byte, 8)
	reg := Peripheral(0x4402_0060)
	cfg8 := ChannelConfig{SrcSize: Size8, SrcInc: Inc8, DstSize: Size8, DstInc: IncNone}
	cfg16 := ChannelConfig{SrcSize: Size16, SrcInc: Inc16, DstSize: Size16, DstInc: IncNone}

	tests := []struct {
		name string
		ch   uint8
		xfer Transfer
		want error
	}{
		{"ok", 0, Transfer{Memory(buf), reg, 8, cfg8}, nil},
		{"bad channel", 12, Transfer{Memory(buf), reg, 8, cfg8}, ErrChannel},
		{"zero count", 0, Transfer{Memory(buf), reg, 0, cfg8}, ErrTransfer},
		{"no source", 0, Transfer{Memory(nil), reg, 8, cfg8}, ErrTransfer},
		{"short buffer", 0, Transfer{Memory(buf), reg, 9, cfg8}, ErrTransfer},
		{"halfwords fit", 0, Transfer{Memory(buf), reg, 4, cfg16}, nil},
		{"halfwords overflow", 0, Transfer{Memory(buf), reg, 5, cfg16}, ErrTransfer},
		{"beat count wraps", 0, Transfer{Memory(buf), reg, 0x8000_0001, cfg16}, ErrTransfer},
		{"mismatched size", 0, Transfer{Memory(buf), reg, 4, ChannelConfig{SrcSize: Size8, DstSize: Size16}}, ErrTransfer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.ch, 12, tt.xfer); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPL230ConfigureAndEnable(t *testing.T) {
	regs := newRegBank()
	d := NewPL230(regs, 32)

	buf := make([]byte, 16)
	xfer := Transfer{
		Src:    Memory(buf),
		Dst:    Peripheral(0x4402_0060),
		Count:  16,
		Config: ChannelConfig{SrcSize: Size8, SrcInc: Inc8, DstSize: Size8, DstInc: IncNone},
	}
	if err := d.ChannelConfigure(3, xfer, nil); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Expected ErrNotReady before Initialize, got %v", err)
	}
	if err := d.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if regs.regs[regCtrlBasePtr]%tableAlign != 0 {
		t.Errorf("Descriptor table not aligned: 0x%08X", regs.regs[regCtrlBasePtr])
	}

	if err := d.ChannelConfigure(3, xfer, nil); err != nil {
		t.Fatalf("ChannelConfigure failed: %v", err)
	}
	desc := d.table[3]
	if desc.Control&0x7 != uint32(ModeBasic) {
		t.Errorf("Expected basic cycle, got %d", desc.Control&0x7)
	}
	if n := (desc.Control >> 4) & 0x3FF; n != 15 {
		t.Errorf("Expected n_minus_1 15, got %d", n)
	}
	if desc.SrcEnd != uint32(xfer.Src.Addr)+15 {
		t.Errorf("Expected source end at last byte, got 0x%08X", desc.SrcEnd)
	}
	if desc.DstEnd != 0x4402_0060 {
		t.Errorf("Expected fixed destination, got 0x%08X", desc.DstEnd)
	}
	if !regs.wrote(regReqMaskClr, 1<<3) {
		t.Error("Expected request mask cleared for channel 3")
	}

	if err := d.ChannelEnable(3); err != nil {
		t.Fatalf("ChannelEnable failed: %v", err)
	}
	if err := d.ChannelEnable(4); !errors.Is(err, ErrTransfer) {
		t.Errorf("Expected ErrTransfer for unconfigured channel, got %v", err)
	}
	d.DMAEnable()
	if regs.regs[regEnableSet] != 1<<3 || regs.regs[regCfg] != cfgMasterEnable {
		t.Errorf("Expected channel 3 and master enabled, got enable=0x%X cfg=0x%X",
			regs.regs[regEnableSet], regs.regs[regCfg])
	}
}

func TestPL230ChainsLongTransfers(t *testing.T) {
	regs := newRegBank()
	d := NewPL230(regs, 32)
	if err := d.Initialize(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 2500)
	var events []Event
	xfer := Transfer{
		Src:    Peripheral(0x4402_0060),
		Dst:    Memory(buf),
		Count:  2500,
		Config: ChannelConfig{SrcSize: Size8, SrcInc: IncNone, DstSize: Size8, DstInc: Inc8},
	}
	err := d.ChannelConfigure(0, xfer, func(ev Event, ch uint8) { events = append(events, ev) })
	if err != nil {
		t.Fatal(err)
	}

	base := uint32(xfer.Dst.Addr)
	wantEnds := []uint32{base + 1023, base + 2047, base + 2499}
	wantBeats := []uint32{1023, 1023, 451}
	for i := range wantEnds {
		desc := d.table[0]
		if desc.DstEnd != wantEnds[i] {
			t.Errorf("Chunk %d: expected dst end 0x%08X, got 0x%08X", i, wantEnds[i], desc.DstEnd)
		}
		if n := (desc.Control >> 4) & 0x3FF; n != wantBeats[i] {
			t.Errorf("Chunk %d: expected n_minus_1 %d, got %d", i, wantBeats[i], n)
		}
		if len(events) != 0 {
			t.Fatalf("Chunk %d: callback fired early", i)
		}
		// Hardware writes the cycle type back to stop when a descriptor ends
		d.table[0].Control &^= 0x7
		d.HandleInterrupt()
	}

	if len(events) != 1 || events[0] != EventXferDone {
		t.Errorf("Expected one xfer-done event, got %v", events)
	}
	if got := d.Progress(0); got != 2500 {
		t.Errorf("Expected 2500 beats done, got %d", got)
	}
}

func TestPL230Error(t *testing.T) {
	regs := newRegBank()
	d := NewPL230(regs, 8)
	if err := d.Initialize(); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 4)
	var got []uint8
	cb := func(ev Event, ch uint8) {
		if ev == EventError {
			got = append(got, ch)
		}
	}
	xfer := Transfer{Memory(buf), Peripheral(0x4402_0060), 4, ChannelConfig{DstInc: IncNone}}
	if err := d.ChannelConfigure(1, xfer, cb); err != nil {
		t.Fatal(err)
	}

	// No pending error: nothing happens
	regs.regs[regErrClr] = 0
	d.HandleError()
	if len(got) != 0 {
		t.Fatalf("Unexpected error events: %v", got)
	}

	regs.regs[regErrClr] = 1
	d.HandleError()
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("Expected one error on channel 1, got %v", got)
	}
}
