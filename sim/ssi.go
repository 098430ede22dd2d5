// Package sim models the SiWx917 SSI, UDMA, NVIC, pad and clock blocks on
// the host. The models are synchronous: a frame written to DR is shifted
// immediately, and the NVIC runs handlers from inside the register write
// that raised the line.
package sim

import (
	"gossi/core/ssireg"
)

// Responder produces the frame received while out is shifted. The zero
// responder loops MOSI back to MISO.
type Responder func(out uint32) uint32

// SSI is a register-level model of a DesignWare SSI controller.
type SSI struct {
	base  uintptr
	slave bool // frame width comes from DFS instead of DFS_32

	regs [ssireg.Size / 4]uint32

	tx []uint32
	rx []uint32

	// sticky raw interrupt bits (TXO, RXO, RXU, MST)
	sticky uint32

	busyLeft int

	// Responder supplies MISO frames; nil loops back
	Responder Responder

	// BusyPolls is the number of SR reads that report BUSY after a frame
	BusyPolls int

	// StuckBusy keeps SR.BUSY set forever
	StuckBusy bool

	// OnChange is called after register writes and raised interrupts so an
	// interrupt controller can re-evaluate the line
	OnChange func()

	// Shifted logs every frame driven onto MOSI
	Shifted []uint32
}

// NewSSI returns a controller model mapped at base.
func NewSSI(base uintptr, slave bool) *SSI {
	s := &SSI{base: base, slave: slave, BusyPolls: 1}
	s.regs[ssireg.IDR/4] = 0xFFFF_FFFF
	s.regs[ssireg.VERSION/4] = 0x3430_302A // 4.00a
	return s
}

// Base returns the bank base address.
func (s *SSI) Base() uintptr {
	return s.base
}

// Addr implements mmio.Bank.
func (s *SSI) Addr(off uint32) uintptr {
	return s.base + uintptr(off)
}

func (s *SSI) enabled() bool {
	return s.regs[ssireg.SSIENR/4]&1 != 0
}

func (s *SSI) field(off, msk, pos uint32) uint32 {
	return (s.regs[off/4] >> pos) & msk
}

// width returns the frame width in bits
func (s *SSI) width() uint32 {
	if s.slave {
		return s.field(ssireg.CTRLR0, ssireg.CTRLR0_DFS_Msk, ssireg.CTRLR0_DFS_Pos) + 1
	}
	return s.field(ssireg.CTRLR0, ssireg.CTRLR0_DFS_32_Msk, ssireg.CTRLR0_DFS_32_Pos) + 1
}

func (s *SSI) frameMask() uint32 {
	w := s.width()
	if w >= 32 {
		return 0xFFFF_FFFF
	}
	return 1<<w - 1
}

// raw returns RISR
func (s *SSI) raw() uint32 {
	r := s.sticky
	if s.enabled() {
		if uint32(len(s.tx)) <= s.regs[ssireg.TXFTLR/4] {
			r |= ssireg.TXEI
		}
		if uint32(len(s.rx)) > s.regs[ssireg.RXFTLR/4] {
			r |= ssireg.RXFI
		}
	}
	return r
}

// Pending reports whether the interrupt output is asserted.
func (s *SSI) Pending() bool {
	return s.raw()&s.regs[ssireg.IMR/4] != 0
}

// Read implements mmio.Bank, including read side effects.
func (s *SSI) Read(off uint32) uint32 {
	switch off {
	case ssireg.DR:
		if len(s.rx) == 0 {
			s.sticky |= ssireg.RXUI
			return 0
		}
		v := s.rx[0]
		s.rx = s.rx[1:]
		return v
	case ssireg.SR:
		return s.status()
	case ssireg.TXFLR:
		return uint32(len(s.tx))
	case ssireg.RXFLR:
		return uint32(len(s.rx))
	case ssireg.ISR:
		return s.raw() & s.regs[ssireg.IMR/4]
	case ssireg.RISR:
		return s.raw()
	case ssireg.ICR:
		v := s.sticky & (ssireg.TXOI | ssireg.RXOI | ssireg.RXUI | ssireg.MSTI)
		s.sticky = 0
		if v != 0 {
			return 1
		}
		return 0
	case ssireg.TXOICR:
		return s.clear(ssireg.TXOI)
	case ssireg.RXOICR:
		return s.clear(ssireg.RXOI)
	case ssireg.RXUICR:
		return s.clear(ssireg.RXUI)
	case ssireg.MSTICR:
		return s.clear(ssireg.MSTI)
	}
	if off/4 < uint32(len(s.regs)) {
		return s.regs[off/4]
	}
	return 0
}

func (s *SSI) clear(bit uint32) uint32 {
	v := s.sticky & bit
	s.sticky &^= bit
	if v != 0 {
		return 1
	}
	return 0
}

func (s *SSI) status() uint32 {
	var sr uint32
	if s.StuckBusy {
		sr |= ssireg.SR_BUSY
	} else if s.busyLeft > 0 {
		sr |= ssireg.SR_BUSY
		s.busyLeft--
	}
	if len(s.tx) < ssireg.FIFODepth {
		sr |= ssireg.SR_TFNF
	}
	if len(s.tx) == 0 {
		sr |= ssireg.SR_TFE
	}
	if len(s.rx) > 0 {
		sr |= ssireg.SR_RFNE
	}
	if len(s.rx) == ssireg.FIFODepth {
		sr |= ssireg.SR_RFF
	}
	return sr
}

// Write implements mmio.Bank.
func (s *SSI) Write(off uint32, v uint32) {
	switch off {
	case ssireg.DR:
		s.push(v)
	case ssireg.SSIENR:
		s.regs[off/4] = v & 1
		if v&1 == 0 {
			// Disabling flushes both FIFOs and clears interrupt state
			s.tx = s.tx[:0]
			s.rx = s.rx[:0]
			s.sticky = 0
			s.busyLeft = 0
		}
	case ssireg.SR, ssireg.TXFLR, ssireg.RXFLR, ssireg.ISR, ssireg.RISR,
		ssireg.TXOICR, ssireg.RXOICR, ssireg.RXUICR, ssireg.MSTICR, ssireg.ICR,
		ssireg.IDR, ssireg.VERSION:
		// read-only
	default:
		if off/4 < uint32(len(s.regs)) {
			s.regs[off/4] = v
		}
	}
	s.changed()
}

// push queues a frame and shifts it out when the controller is enabled
func (s *SSI) push(v uint32) {
	if !s.enabled() {
		return
	}
	if len(s.tx) >= ssireg.FIFODepth {
		s.sticky |= ssireg.TXOI
		return
	}
	s.tx = append(s.tx, v&s.frameMask())
	s.shift()
}

// shift clocks every queued frame according to TMOD. In receive-only mode
// each DR write clocks one frame.
func (s *SSI) shift() {
	tmod := s.field(ssireg.CTRLR0, ssireg.CTRLR0_TMOD_Msk, ssireg.CTRLR0_TMOD_Pos)
	for len(s.tx) > 0 {
		out := s.tx[0]
		s.tx = s.tx[1:]
		if tmod != ssireg.ReceiveOnly {
			s.Shifted = append(s.Shifted, out)
		}
		if tmod != ssireg.TransmitOnly {
			in := out
			if s.Responder != nil {
				in = s.Responder(out)
			}
			s.receive(in & s.frameMask())
		}
		s.busyLeft = s.BusyPolls
	}
}

func (s *SSI) receive(v uint32) {
	if len(s.rx) >= ssireg.FIFODepth {
		s.sticky |= ssireg.RXOI
		return
	}
	s.rx = append(s.rx, v)
}

// Inject places a frame in the receive FIFO as if clocked in by a remote
// master.
func (s *SSI) Inject(v uint32) {
	if !s.enabled() {
		return
	}
	s.receive(v & s.frameMask())
	s.changed()
}

// Raise sets raw interrupt status bits (TXO, RXO, RXU, MST).
func (s *SSI) Raise(bits uint32) {
	s.sticky |= bits & (ssireg.TXOI | ssireg.RXOI | ssireg.RXUI | ssireg.MSTI)
	s.changed()
}

func (s *SSI) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

// Reg returns the stored value of a configuration register without side
// effects.
func (s *SSI) Reg(off uint32) uint32 {
	return s.regs[off/4]
}

// RxLevel returns the number of frames in the receive FIFO.
func (s *SSI) RxLevel() int {
	return len(s.rx)
}

// TxRequest reports the transmit DMA handshake.
func (s *SSI) TxRequest() bool {
	return s.enabled() && s.regs[ssireg.DMACR/4]&ssireg.DMACR_TDMAE != 0 &&
		uint32(len(s.tx)) <= s.regs[ssireg.DMATDLR/4]
}

// RxRequest reports the receive DMA handshake.
func (s *SSI) RxRequest() bool {
	return s.enabled() && s.regs[ssireg.DMACR/4]&ssireg.DMACR_RDMAE != 0 &&
		uint32(len(s.rx)) > s.regs[ssireg.DMARDLR/4]
}
