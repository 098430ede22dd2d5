package core

import (
	"gossi/mmio"
	"gossi/udma"
)

// InstanceMode selects which SSI controller flavour an instance drives.
type InstanceMode uint8

const (
	InstanceMaster    InstanceMode = 1 // HP SSI master
	InstanceSlave     InstanceMode = 2 // SSI slave
	InstanceULPMaster InstanceMode = 3 // ULP SSI master
)

func (m InstanceMode) String() string {
	switch m {
	case InstanceMaster:
		return "master"
	case InstanceSlave:
		return "slave"
	case InstanceULPMaster:
		return "ulp-master"
	default:
		return "unknown"
	}
}

// isMaster reports whether the instance drives the clock
func (m InstanceMode) isMaster() bool {
	return m == InstanceMaster || m == InstanceULPMaster
}

// BankID identifies an SSI register bank.
type BankID uint8

const (
	BankSSI0     BankID = iota // master-only
	BankSSISlave               // slave-only
	BankSSI2                   // ULP, master-only
)

// Pin describes one SSI signal's pad routing.
type Pin struct {
	Port   uint8
	Pin    uint8
	Mux    uint8
	PadSel uint8 // 0 when the pin has no pad selection
}

// ClockConfig is the clock source configuration of an instance.
type ClockConfig struct {
	Source    uint8
	ULPSource uint8
	DivFactor uint16
	BaseHz    uint32 // SSI input clock used to derive the bus divisor
}

// DMABinding ties a transfer direction to a UDMA channel.
type DMABinding struct {
	Channel uint8
}

// PadDriverState is the idle drive of a disabled pad.
type PadDriverState uint8

const (
	PadHiZ PadDriverState = iota
	PadPullUp
	PadRepeater
	PadPullDown
)

// PinMux configures pads and GPIO for SSI signals.
type PinMux interface {
	// SetPinMux selects the function of an HP GPIO pin
	SetPinMux(port, pin, mode uint8)

	// ULPSetPinMux selects the function of a ULP GPIO pin
	ULPSetPinMux(pin, mode uint8)

	PadSelectionEnable(padSel uint8)
	PadReceiverEnable(pin uint8)
	ULPPadReceiverEnable(pin uint8)

	// HostPadsGPIOModeEnable hands a shared host pad (25-30) to the MCU
	HostPadsGPIOModeEnable(pin uint8)

	SetDir(port, pin uint8, output bool)
	SetPin(port, pin uint8, high bool)
	PadDriverDisableState(pin uint8, state PadDriverState)
}

// ClockManager gates the SSI peripheral clocks.
type ClockManager interface {
	SSIMasterClockEnable(source uint8, div uint16)
	SSISlaveClockEnable()
	ULPSSIClockEnable(source uint8, div uint16)
}

// IRQController is the interrupt controller line control.
type IRQController interface {
	EnableIRQ(irq uint32)
	DisableIRQ(irq uint32)
	ClearPendingIRQ(irq uint32)
}

// Resources is the immutable board description of one SSI instance.
type Resources struct {
	Name   string
	Mode   InstanceMode
	BankID BankID
	Regs   mmio.Bank

	SCK  *Pin
	CS   [4]*Pin
	MOSI *Pin
	MISO *Pin

	Clock ClockConfig
	IRQ   uint32

	RxDMA *DMABinding
	TxDMA *DMABinding

	// SlaveNumber is the chip select used until SetSlaveNumber is called
	SlaveNumber uint8

	Pins   PinMux
	Clocks ClockManager
	NVIC   IRQController
	DMA    udma.Controller
}

// hasDMA reports whether either direction is bound to a DMA channel
func (r *Resources) hasDMA() bool {
	return r.RxDMA != nil || r.TxDMA != nil
}

// anyCS reports whether at least one chip select pin is routed
func (r *Resources) anyCS() bool {
	for _, cs := range r.CS {
		if cs != nil {
			return true
		}
	}
	return false
}

// Platform collaborators registered by target code, used when a Resources
// entry leaves them nil.
var (
	pinMux        PinMux
	clockManager  ClockManager
	irqController IRQController
)

// SetPinMux is called by target-specific code to register its pad controller
func SetPinMux(p PinMux) {
	pinMux = p
}

// SetClockManager is called by target-specific code to register its clock tree
func SetClockManager(c ClockManager) {
	clockManager = c
}

// SetIRQController is called by target-specific code to register its NVIC
func SetIRQController(c IRQController) {
	irqController = c
}

// MustPinMux returns the registered pad controller or panics if missing
func MustPinMux() PinMux {
	if pinMux == nil {
		panic("pin mux not configured")
	}
	return pinMux
}

// MustClockManager returns the registered clock manager or panics if missing
func MustClockManager() ClockManager {
	if clockManager == nil {
		panic("clock manager not configured")
	}
	return clockManager
}

// MustIRQController returns the registered NVIC or panics if missing
func MustIRQController() IRQController {
	if irqController == nil {
		panic("IRQ controller not configured")
	}
	return irqController
}
