// Package core implements the SSI transfer engine of the SiWx917: a
// CMSIS-style asynchronous SPI driver whose transfers are pumped either by
// the SSI interrupt or by UDMA channels.
//
// The engine takes no locks. The busy flag in the status word is the only
// mutual exclusion between a caller and the interrupt handler, and callers
// must not start a transfer while one is in flight.
package core

import (
	"gossi/core/ssireg"
	"gossi/mmio"
)

// Status is the driver status word.
type Status struct {
	Busy      bool
	DataLost  bool
	ModeFault bool
}

// Event is a bitmask of driver notifications.
type Event uint32

const (
	EventTransferComplete Event = 1 << 0
	EventDataLost         Event = 1 << 1
	EventModeFault        Event = 1 << 2
)

// SignalEvent receives driver events. It runs in interrupt context and
// must not block.
type SignalEvent func(event Event)

// PowerState is a CMSIS power state.
type PowerState uint8

const (
	PowerOff  PowerState = 0
	PowerLow  PowerState = 1
	PowerFull PowerState = 2
)

// Lifecycle state bits
const (
	StateInitialized = 1 << 0
	StatePowered     = 1 << 1
	StateConfigured  = 1 << 2
)

// DummyData is the default value clocked out when only receiving.
const DummyData = 0xA5

// Options adjusts engine behaviour that differs from the vendor driver.
type Options struct {
	// RecoverDMAErrors makes DMA channel errors and channel configure
	// failures end the transfer with a data-lost event instead of leaving
	// the instance busy.
	RecoverDMAErrors bool

	// SpinLimit bounds each SR.BUSY wait. Zero selects DefaultSpinLimit.
	SpinLimit int
}

// DefaultSpinLimit is the number of status polls allowed for the busy bit
// to clear after a frame is queued.
const DefaultSpinLimit = 1 << 16

// transferInfo tracks the transfer in flight
type transferInfo struct {
	tx    []byte
	rx    []byte
	num   uint32 // total bytes
	txCnt uint32
	rxCnt uint32
}

// Driver is one SSI instance.
type Driver struct {
	res  *Resources
	regs mmio.Bank
	opts Options

	pins   PinMux
	clocks ClockManager
	nvic   IRQController

	state    uint8
	mode     uint32
	status   Status
	callback SignalEvent
	xfer     transferInfo

	bytesPerFrame uint32
	slaveNumber   uint8
	fill          uint16

	// scratch is the fixed DMA endpoint for the unused direction of a
	// half-duplex transfer
	scratch [4]byte
}

// New returns a driver for the instance described by res.
func New(res *Resources, opts Options) *Driver {
	if opts.SpinLimit <= 0 {
		opts.SpinLimit = DefaultSpinLimit
	}
	return &Driver{
		res:         res,
		regs:        res.Regs,
		opts:        opts,
		slaveNumber: res.SlaveNumber,
		fill:        DummyData,
	}
}

// Resources returns the board description of the instance.
func (d *Driver) Resources() *Resources {
	return d.res
}

// bind resolves collaborators, falling back to the registered platform ones
func (d *Driver) bind() {
	if d.pins == nil {
		d.pins = d.res.Pins
		if d.pins == nil {
			d.pins = MustPinMux()
		}
	}
	if d.clocks == nil {
		d.clocks = d.res.Clocks
		if d.clocks == nil {
			d.clocks = MustClockManager()
		}
	}
	if d.nvic == nil {
		d.nvic = d.res.NVIC
		if d.nvic == nil {
			d.nvic = MustIRQController()
		}
	}
}

// Initialize routes the instance's pins, resets the run-time state and
// prepares the DMA controller when a channel is bound. Calling it again
// while initialized has no effect.
func (d *Driver) Initialize(cb SignalEvent) error {
	if d.state&StateInitialized != 0 {
		return nil
	}
	r := d.res
	if r.SCK == nil || r.MOSI == nil || r.MISO == nil {
		return ErrParameter
	}
	d.bind()

	for _, p := range d.signalPins() {
		if r.Mode == InstanceULPMaster {
			d.pins.ULPPadReceiverEnable(p.Pin)
			d.pins.ULPSetPinMux(p.Pin, p.Mux)
			continue
		}
		d.routeHP(p)
	}

	d.callback = cb
	d.status = Status{}
	d.xfer = transferInfo{}
	d.fill = DummyData

	if r.hasDMA() {
		if r.DMA == nil {
			return ErrParameter
		}
		if err := r.DMA.Initialize(); err != nil {
			return ErrDriver
		}
	}
	d.state = StateInitialized
	trace(TraceInit, d.res.BankID, uint32(r.Mode), 0)
	return nil
}

// signalPins lists the routed pins in bring-up order
func (d *Driver) signalPins() []*Pin {
	r := d.res
	pins := make([]*Pin, 0, 7)
	pins = append(pins, r.SCK)
	for _, cs := range r.CS {
		if cs != nil {
			pins = append(pins, cs)
		}
	}
	return append(pins, r.MOSI, r.MISO)
}

// ulpPinBase is the first HP pin number that is a ULP pad underneath
const ulpPinBase = 64

// ulpPadMode is the ULP mux mode that hands a ULP pad to the HP GPIO bank
const ulpPadMode = 6

// routeHP muxes a pin on the HP GPIO bank
func (d *Driver) routeHP(p *Pin) {
	if p.Pin > ulpPinBase {
		d.pins.ULPPadReceiverEnable(p.Pin - ulpPinBase)
		d.pins.ULPSetPinMux(p.Pin-ulpPinBase, ulpPadMode)
	}
	d.pins.SetPinMux(p.Port, p.Pin, p.Mux)
	if p.PadSel != 0 {
		d.pins.PadSelectionEnable(p.PadSel)
	}
	d.pins.PadReceiverEnable(p.Pin)
	if p.Pin >= 25 && p.Pin <= 30 {
		d.pins.HostPadsGPIOModeEnable(p.Pin)
	}
}

// Uninitialize disables the controller and forgets all run-time state.
func (d *Driver) Uninitialize() error {
	d.regs.Write(ssireg.SSIENR, ssireg.Disable)
	d.state = 0
	d.mode = 0
	d.status = Status{}
	d.xfer = transferInfo{}
	d.callback = nil
	if d.res.hasDMA() && d.res.DMA != nil {
		d.res.DMA.Uninitialize()
	}
	return nil
}

// PowerControl switches the instance between PowerOff and PowerFull.
func (d *Driver) PowerControl(state PowerState) error {
	switch state {
	case PowerOff:
		if d.nvic != nil {
			d.nvic.DisableIRQ(d.res.IRQ)
		}
		d.regs.Write(ssireg.SSIENR, ssireg.Disable)
		d.status = Status{}
		if d.nvic != nil {
			d.nvic.ClearPendingIRQ(d.res.IRQ)
		}
		d.xfer = transferInfo{}
		d.state &^= StatePowered
		return nil

	case PowerFull:
		if d.state&StateInitialized == 0 {
			return ErrDriver
		}
		if d.state&StatePowered != 0 {
			return nil
		}
		c := d.res.Clock
		switch d.res.Mode {
		case InstanceMaster:
			d.clocks.SSIMasterClockEnable(c.Source, c.DivFactor)
		case InstanceSlave:
			d.clocks.SSISlaveClockEnable()
		case InstanceULPMaster:
			d.clocks.ULPSSIClockEnable(c.ULPSource, c.DivFactor)
		}
		d.status = Status{}
		d.state |= StatePowered
		d.nvic.ClearPendingIRQ(d.res.IRQ)
		d.nvic.EnableIRQ(d.res.IRQ)
		return nil

	default:
		return ErrUnsupported
	}
}

// GetStatus returns a snapshot of the status word.
func (d *Driver) GetStatus() Status {
	state := disableInterrupts()
	s := d.status
	restoreInterrupts(state)
	return s
}

// GetDataCount returns the number of bytes received by the current or last
// transfer, or 0 when the instance is not configured.
func (d *Driver) GetDataCount() uint32 {
	if d.state&StateConfigured == 0 {
		return 0
	}
	return d.xfer.rxCnt
}

// State returns the lifecycle state bits.
func (d *Driver) State() uint8 {
	return d.state
}

// Mode returns the active control word (mode and slave select policy).
func (d *Driver) Mode() uint32 {
	return d.mode
}

// SetSlaveNumber selects the chip select used by slave select control and
// DMA receive completion. It cannot change while a transfer is in flight.
func (d *Driver) SetSlaveNumber(n uint8) error {
	if n >= uint8(len(d.res.CS)) {
		return ErrParameter
	}
	if d.status.Busy {
		return ErrBusy
	}
	d.slaveNumber = n
	return nil
}

// SlaveNumber returns the selected chip select index.
func (d *Driver) SlaveNumber() uint8 {
	return d.slaveNumber
}

// ClearEnableState disables the controller, flushing both FIFOs.
func (d *Driver) ClearEnableState() {
	d.regs.Write(ssireg.SSIENR, ssireg.Disable)
}

// SlaveSetCSInitState pulls CS0 up so a slave idles deselected.
func (d *Driver) SlaveSetCSInitState() error {
	cs := d.res.CS[0]
	if cs == nil {
		return ErrParameter
	}
	d.bind()
	d.pins.PadDriverDisableState(cs.Pin, PadPullUp)
	return nil
}

// BytesPerFrame returns the frame size in bytes of the last started transfer.
func (d *Driver) BytesPerFrame() uint32 {
	return d.bytesPerFrame
}

// signal delivers an event to the registered callback
func (d *Driver) signal(event Event) {
	if event != 0 && d.callback != nil {
		d.callback(event)
	}
}
