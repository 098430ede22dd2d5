package core_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gossi/board"
	"gossi/core"
	"gossi/core/ssireg"
	"gossi/udma"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + 3)
	}
	return b
}

func TestLoopbackTransfer(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.master(t, 8)

	out := pattern(16)
	in := make([]byte, 16)
	if err := h.drv.Transfer(out, in, 16); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if !bytes.Equal(in, out) {
		t.Errorf("Loopback mismatch: sent %v, received %v", out, in)
	}
	num, txCnt, rxCnt := h.drv.TransferCounts()
	if num != 16 || txCnt != num || rxCnt != num {
		t.Errorf("Expected num=tx=rx=16, got num=%d tx=%d rx=%d", num, txCnt, rxCnt)
	}
	if diff := cmp.Diff([]core.Event{core.EventTransferComplete}, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(core.Status{}, h.drv.GetStatus()); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
	if h.drv.GetDataCount() != 16 {
		t.Errorf("Expected data count 16, got %d", h.drv.GetDataCount())
	}
}

func TestLoopbackWideFrames(t *testing.T) {
	tests := []struct {
		bits  uint32
		bpf   int
		count uint32
	}{
		{12, 2, 4},
		{16, 2, 5},
		{24, 4, 3},
		{32, 4, 3},
	}
	for _, tt := range tests {
		h := newHarness(t, board.BusMaster, board.SimOptions{})
		h.master(t, tt.bits)

		n := int(tt.count) * tt.bpf
		out := pattern(n)
		// Only the low bits of each frame are clocked
		for i := 0; i < n; i += tt.bpf {
			var mask uint32 = 1<<tt.bits - 1
			for j := 0; j < tt.bpf; j++ {
				out[i+j] &= byte(mask >> (8 * j))
			}
		}
		in := make([]byte, n)
		if err := h.drv.Transfer(out, in, tt.count); err != nil {
			t.Fatalf("%d bits: Transfer failed: %v", tt.bits, err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("%d bits: loopback mismatch: sent %v, received %v", tt.bits, out, in)
		}
		if len(h.events) != 1 {
			t.Errorf("%d bits: expected one event, got %v", tt.bits, h.events)
		}
	}
}

func TestBytesPerFrame(t *testing.T) {
	for bits := uint32(4); bits <= 32; bits++ {
		h := newHarness(t, board.BusMaster, board.SimOptions{})
		h.board.NVIC.Auto = false
		h.master(t, bits)

		want := uint32(1)
		switch {
		case bits > 16:
			want = 4
		case bits > 8:
			want = 2
		}
		if got := core.BytesForWidth(bits - 1); got != want {
			t.Errorf("%d bits: expected %d bytes per frame, got %d", bits, want, got)
		}

		buf := make([]byte, 12)
		if err := h.drv.Transfer(buf, make([]byte, 12), 3); err != nil {
			t.Fatalf("%d bits: Transfer failed: %v", bits, err)
		}
		if h.drv.BytesPerFrame() != want {
			t.Errorf("%d bits: expected engine bytes per frame %d, got %d", bits, want, h.drv.BytesPerFrame())
		}
		if num, _, _ := h.drv.TransferCounts(); num != 3*want {
			t.Errorf("%d bits: expected num %d, got %d", bits, 3*want, num)
		}
	}
}

func TestBusyRejectsTransfers(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.board.NVIC.Auto = false
	h.master(t, 8)

	out := pattern(4)
	if err := h.drv.Transfer(out, make([]byte, 4), 4); err != nil {
		t.Fatal(err)
	}
	if !h.drv.GetStatus().Busy {
		t.Fatal("Expected busy while the interrupt is held off")
	}
	num, txCnt, rxCnt := h.drv.TransferCounts()

	other := make([]byte, 8)
	calls := []struct {
		name string
		fn   func() error
	}{
		{"Send", func() error { return h.drv.Send(other, 8) }},
		{"Receive", func() error { return h.drv.Receive(other, 8) }},
		{"Transfer", func() error { return h.drv.Transfer(other, other, 8) }},
		{"Control", func() error { _, err := h.drv.Control(core.ModeMaster|core.DataBits(8), 1000); return err }},
	}
	for _, c := range calls {
		if err := c.fn(); !errors.Is(err, core.ErrBusy) {
			t.Errorf("%s: expected ErrBusy, got %v", c.name, err)
		}
		n, tx, rx := h.drv.TransferCounts()
		if n != num || tx != txCnt || rx != rxCnt {
			t.Errorf("%s: descriptor changed to num=%d tx=%d rx=%d", c.name, n, tx, rx)
		}
	}

	if _, err := h.drv.Control(core.AbortTransfer, 0); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if h.drv.GetStatus().Busy {
		t.Error("Expected busy cleared by abort")
	}
	if n, _, _ := h.drv.TransferCounts(); n != 0 {
		t.Errorf("Expected descriptor cleared by abort, got num=%d", n)
	}
}

func TestTransferParameters(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.master(t, 16)

	buf := make([]byte, 8)
	tests := []struct {
		name string
		fn   func() error
	}{
		{"send zero frames", func() error { return h.drv.Send(buf, 0) }},
		{"send nil", func() error { return h.drv.Send(nil, 1) }},
		{"receive nil", func() error { return h.drv.Receive(nil, 1) }},
		{"transfer nil in", func() error { return h.drv.Transfer(buf, nil, 1) }},
		{"short buffer", func() error { return h.drv.Send(buf, 5) }},
	}
	for _, tt := range tests {
		if err := tt.fn(); !errors.Is(err, core.ErrParameter) {
			t.Errorf("%s: expected ErrParameter, got %v", tt.name, err)
		}
		if h.drv.GetStatus().Busy {
			t.Errorf("%s: busy set after rejected call", tt.name)
		}
	}
	if len(h.events) != 0 {
		t.Errorf("Expected no events, got %v", h.events)
	}
}

func TestTransferFrameCountOverflow(t *testing.T) {
	// 0x40000000 frames of 4 bytes wraps a 32-bit byte count to zero
	const frames = 0x4000_0000
	for _, dma := range []bool{false, true} {
		h := newHarness(t, board.BusMaster, board.SimOptions{DMA: dma})
		h.master(t, 32)

		buf := make([]byte, 4)
		calls := []struct {
			name string
			fn   func() error
		}{
			{"send", func() error { return h.drv.Send(buf, frames) }},
			{"receive", func() error { return h.drv.Receive(buf, frames) }},
			{"transfer", func() error { return h.drv.Transfer(buf, make([]byte, 4), frames) }},
		}
		for _, c := range calls {
			if err := c.fn(); !errors.Is(err, core.ErrParameter) {
				t.Errorf("dma=%v %s: expected ErrParameter, got %v", dma, c.name, err)
			}
			if h.drv.GetStatus().Busy {
				t.Errorf("dma=%v %s: busy set after rejected call", dma, c.name)
			}
		}
		if num, _, _ := h.drv.TransferCounts(); num != 0 {
			t.Errorf("dma=%v: expected descriptor untouched, got num %d", dma, num)
		}
		if len(h.events) != 0 {
			t.Errorf("dma=%v: expected no events, got %d", dma, len(h.events))
		}
		if dma && len(h.board.UDMA[board.UDMA0].Configured) != 0 {
			t.Errorf("Expected no DMA channel armed, got %d", len(h.board.UDMA[board.UDMA0].Configured))
		}
	}
}

func TestSendInterrupt(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.master(t, 8)

	out := pattern(10)
	if err := h.drv.Send(out, 10); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(h.ssi.Shifted))
	for i, f := range h.ssi.Shifted {
		got[i] = byte(f)
	}
	if !bytes.Equal(got, out) {
		t.Errorf("Expected %v on MOSI, got %v", out, got)
	}
	if h.ssi.RxLevel() != 0 {
		t.Errorf("Transmit-only mode filled the RX FIFO with %d frames", h.ssi.RxLevel())
	}
	if diff := cmp.Diff([]core.Event{core.EventTransferComplete}, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	if h.drv.GetStatus().Busy {
		t.Error("Expected busy cleared")
	}
}

func TestReceiveClocksFill(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.master(t, 8)
	if _, err := h.drv.Control(core.SetDefaultTxValue, 0x3C); err != nil {
		t.Fatal(err)
	}

	var clocked []uint32
	next := byte(0x40)
	h.ssi.Responder = func(out uint32) uint32 {
		clocked = append(clocked, out)
		next++
		return uint32(next)
	}

	in := make([]byte, 5)
	if err := h.drv.Receive(in, 5); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{0x41, 0x42, 0x43, 0x44, 0x45}, in); diff != "" {
		t.Errorf("Received data mismatch (-want +got):\n%s", diff)
	}
	for i, c := range clocked {
		if c != 0x3C {
			t.Errorf("Frame %d: expected fill 0x3C clocked out, got 0x%X", i, c)
		}
	}
	if len(clocked) != 5 {
		t.Errorf("Expected 5 frames clocked, got %d", len(clocked))
	}
	if len(h.events) != 1 || h.events[0] != core.EventTransferComplete {
		t.Errorf("Expected one completion, got %v", h.events)
	}
}

func TestSlaveTransfer(t *testing.T) {
	h := newHarness(t, board.BusSlave, board.SimOptions{})
	if _, err := h.drv.Control(core.ModeSlave|core.CPOL1CPHA1|core.DataBits(16), 0); err != nil {
		t.Fatal(err)
	}
	h.ssi.Responder = func(out uint32) uint32 { return ^out & 0xFFFF }

	out := []byte{0x34, 0x12, 0x78, 0x56}
	in := make([]byte, 4)
	if err := h.drv.Transfer(out, in, 2); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xCB, 0xED, 0x87, 0xA9}
	if diff := cmp.Diff(want, in); diff != "" {
		t.Errorf("Slave receive mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]uint32{0x1234, 0x5678}, h.ssi.Shifted); diff != "" {
		t.Errorf("Frames assembled low byte first (-want +got):\n%s", diff)
	}
}

func TestOverrunSignalsDataLost(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.board.NVIC.Auto = false
	h.master(t, 8)

	if err := h.drv.Transfer(pattern(4), make([]byte, 4), 4); err != nil {
		t.Fatal(err)
	}
	h.ssi.Raise(ssireg.RXOI)
	h.drv.HandleInterrupt()

	if diff := cmp.Diff([]core.Event{core.EventDataLost}, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	want := core.Status{Busy: true, DataLost: true}
	if diff := cmp.Diff(want, h.drv.GetStatus()); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}
	if h.ssi.Read(ssireg.RISR)&ssireg.OverrunMask != 0 {
		t.Error("Expected overrun status cleared")
	}
}

func TestFrameAfterCompletionIsDataLost(t *testing.T) {
	h := newHarness(t, board.BusSlave, board.SimOptions{})
	if _, err := h.drv.Control(core.ModeSlave|core.DataBits(8), 0); err != nil {
		t.Fatal(err)
	}
	in := make([]byte, 2)
	if err := h.drv.Receive(in, 2); err != nil {
		t.Fatal(err)
	}
	h.ssi.Inject(0x11)
	h.ssi.Inject(0x22)
	if len(h.events) != 1 || h.events[0] != core.EventTransferComplete {
		t.Fatalf("Expected completion after two frames, got %v", h.events)
	}

	// Re-arm RXF without a new transfer. The stray frame is never drained,
	// so dispatch by hand.
	h.board.NVIC.Auto = false
	h.ssi.Write(ssireg.IMR, ssireg.RXFI)
	h.ssi.Inject(0x33)
	h.drv.HandleInterrupt()

	want := []core.Event{core.EventTransferComplete, core.EventDataLost}
	if diff := cmp.Diff(want, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	if h.ssi.RxLevel() != 1 {
		t.Errorf("Expected the stray frame left in the FIFO, got level %d", h.ssi.RxLevel())
	}
}

func TestSpinWaitIsBounded(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{Driver: core.Options{SpinLimit: 8}})
	h.master(t, 8)
	h.ssi.StuckBusy = true
	core.ClearTrace()

	if err := h.drv.Send([]byte{1, 2}, 2); err != nil {
		t.Fatal(err)
	}
	if len(h.events) != 1 {
		t.Errorf("Expected completion despite a stuck busy bit, got %v", h.events)
	}
	timeouts := 0
	for _, evt := range core.TraceSnapshot() {
		if evt.Kind == core.TraceSpinTimeout {
			timeouts++
		}
	}
	if timeouts != 2 {
		t.Errorf("Expected 2 spin timeouts traced, got %d", timeouts)
	}
}

func TestDMATransfer(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{DMA: true})
	h.master(t, 8)

	out := pattern(40)
	in := make([]byte, 40)
	if err := h.drv.Transfer(out, in, 40); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("DMA loopback mismatch: sent %v, received %v", out, in)
	}
	if diff := cmp.Diff([]core.Event{core.EventTransferComplete}, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	num, txCnt, rxCnt := h.drv.TransferCounts()
	if txCnt != num || rxCnt != num {
		t.Errorf("Expected counters at %d, got tx=%d rx=%d", num, txCnt, rxCnt)
	}

	desc := board.Descriptors[board.BusMaster]
	cfgs := h.board.UDMA[board.UDMA0].Configured
	if len(cfgs) != 2 {
		t.Fatalf("Expected 2 channel configurations, got %d", len(cfgs))
	}
	rx, tx := cfgs[0], cfgs[1]
	if rx.Channel != desc.RxDMACh || tx.Channel != desc.TxDMACh {
		t.Errorf("Expected channels %d/%d, got %d/%d", desc.RxDMACh, desc.TxDMACh, rx.Channel, tx.Channel)
	}
	if rx.Xfer.Config.SrcInc != udma.IncNone || rx.Xfer.Config.DstInc != udma.Inc8 {
		t.Errorf("RX increments: got src=%d dst=%d", rx.Xfer.Config.SrcInc, rx.Xfer.Config.DstInc)
	}
	if tx.Xfer.Config.SrcInc != udma.Inc8 || tx.Xfer.Config.DstInc != udma.IncNone {
		t.Errorf("TX increments: got src=%d dst=%d", tx.Xfer.Config.SrcInc, tx.Xfer.Config.DstInc)
	}
	if tx.Xfer.Config.TotalNumOfDMATrans != 39 || tx.Xfer.Count != 40 {
		t.Errorf("Expected 40 beats, got field=%d count=%d", tx.Xfer.Config.TotalNumOfDMATrans, tx.Xfer.Count)
	}
	if h.ssi.Reg(ssireg.DMACR) != ssireg.DMACR_RDMAE|ssireg.DMACR_TDMAE {
		t.Errorf("Expected both DMA handshakes enabled, got 0x%X", h.ssi.Reg(ssireg.DMACR))
	}
	if h.ssi.Reg(ssireg.IMR) != 0 {
		t.Errorf("Expected no SSI interrupts unmasked in DMA mode, got 0x%X", h.ssi.Reg(ssireg.IMR))
	}
}

func TestDMASend16(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{DMA: true})
	h.master(t, 16)

	out := []byte{0x01, 0x02, 0x03, 0x04}
	if err := h.drv.Send(out, 2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]uint32{0x0201, 0x0403}, h.ssi.Shifted); diff != "" {
		t.Errorf("MOSI mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]core.Event{core.EventTransferComplete}, h.events); diff != "" {
		t.Errorf("Events mismatch (-want +got):\n%s", diff)
	}
	if h.drv.GetStatus().Busy {
		t.Error("Expected busy cleared")
	}
}

func TestDMAReceive(t *testing.T) {
	h := newHarness(t, board.BusMaster, board.SimOptions{DMA: true})
	h.master(t, 8)
	seq := uint32(0)
	h.ssi.Responder = func(uint32) uint32 {
		seq++
		return seq
	}
	if err := h.drv.SetSlaveNumber(0); err != nil {
		t.Fatal(err)
	}
	h.ssi.Write(ssireg.SER, 1)

	in := make([]byte, 6)
	if err := h.drv.Receive(in, 6); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4, 5, 6}, in); diff != "" {
		t.Errorf("Received mismatch (-want +got):\n%s", diff)
	}
	if ndf := h.ssi.Reg(ssireg.CTRLR1); ndf != 5 {
		t.Errorf("Expected NDF 5, got %d", ndf)
	}
	if h.ssi.Reg(ssireg.SER) != 0 {
		t.Error("Expected slave deselected after receive completion")
	}
	if len(h.events) != 1 {
		t.Errorf("Expected one event, got %v", h.events)
	}
}

func TestDMAConfigureFailure(t *testing.T) {
	tests := []struct {
		name    string
		recover bool
		busy    bool
	}{
		{"compatible", false, true},
		{"recover", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := board.SimOptions{DMA: true, Driver: core.Options{RecoverDMAErrors: tt.recover}}
			h := newHarness(t, board.BusMaster, opts)
			h.master(t, 8)
			h.board.UDMA[board.UDMA0].FailConfigure[board.Descriptors[board.BusMaster].TxDMACh] = true

			if err := h.drv.Send(pattern(4), 4); !errors.Is(err, core.ErrDriver) {
				t.Fatalf("Expected ErrDriver, got %v", err)
			}
			if got := h.drv.GetStatus().Busy; got != tt.busy {
				t.Errorf("Expected busy=%v, got %v", tt.busy, got)
			}
		})
	}
}

func TestDMAError(t *testing.T) {
	tests := []struct {
		name    string
		recover bool
		events  []core.Event
		status  core.Status
	}{
		{"swallowed", false, nil, core.Status{Busy: true}},
		{"recovered", true, []core.Event{core.EventDataLost}, core.Status{DataLost: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := board.SimOptions{DMA: true, Driver: core.Options{RecoverDMAErrors: tt.recover}}
			h := newHarness(t, board.BusMaster, opts)
			h.master(t, 8)
			dma := h.board.UDMA[board.UDMA0]
			dma.AutoRun = false

			if err := h.drv.Transfer(pattern(4), make([]byte, 4), 4); err != nil {
				t.Fatal(err)
			}
			dma.InjectError(board.Descriptors[board.BusMaster].RxDMACh)

			if diff := cmp.Diff(tt.events, h.events); diff != "" {
				t.Errorf("Events mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.status, h.drv.GetStatus()); diff != "" {
				t.Errorf("Status mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTraceRecordsTransfers(t *testing.T) {
	core.ClearTrace()
	h := newHarness(t, board.BusMaster, board.SimOptions{})
	h.master(t, 8)
	if err := h.drv.Transfer(pattern(2), make([]byte, 2), 2); err != nil {
		t.Fatal(err)
	}

	var kinds []uint8
	for _, evt := range core.TraceSnapshot() {
		kinds = append(kinds, evt.Kind)
	}
	want := []uint8{core.TraceInit, core.TraceStart, core.TraceComplete}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("Trace mismatch (-want +got):\n%s", diff)
	}

	var lines []string
	core.SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer core.SetDebugWriter(func(string) {})
	core.DumpTrace()
	if len(lines) != 5 {
		t.Errorf("Expected header, 3 records and footer, got %d lines: %v", len(lines), lines)
	}
}
