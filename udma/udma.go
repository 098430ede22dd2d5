// Package udma defines the micro-DMA channel manager used by peripheral
// drivers: per-channel transfer descriptors, completion events and the
// Controller contract, plus a PL230 implementation for the SoC's UDMA blocks.
package udma

import (
	"errors"
	"unsafe"
)

// Size is the width of a single DMA beat.
type Size uint8

const (
	Size8  Size = 0
	Size16 Size = 1
	Size32 Size = 2
)

// Bytes returns the number of bytes moved per beat.
func (s Size) Bytes() uint32 {
	switch s {
	case Size16:
		return 2
	case Size32:
		return 4
	default:
		return 1
	}
}

// Increment is the address increment applied after each beat.
type Increment uint8

const (
	Inc8    Increment = 0
	Inc16   Increment = 1
	Inc32   Increment = 2
	IncNone Increment = 3
)

// Bytes returns the address step in bytes, 0 for IncNone.
func (i Increment) Bytes() uint32 {
	switch i {
	case Inc8:
		return 1
	case Inc16:
		return 2
	case Inc32:
		return 4
	default:
		return 0
	}
}

// Mode is the descriptor cycle type.
type Mode uint8

const (
	ModeStop      Mode = 0
	ModeBasic     Mode = 1
	ModeAutoReq   Mode = 2
	ModePingPong  Mode = 3
	ModeMemScatA  Mode = 4
	ModeMemScatB  Mode = 5
	ModePeriScatA Mode = 6
	ModePeriScatB Mode = 7
)

// ArbSize is the number of beats between bus re-arbitration, as a power of two.
type ArbSize uint8

const (
	Arb1 ArbSize = 0
	Arb2 ArbSize = 1
	Arb4 ArbSize = 2
	Arb8 ArbSize = 3
)

// MaxBeats is the number of beats a single descriptor can move.
const MaxBeats = 1024

// ChannelConfig is the per-descriptor control configuration.
type ChannelConfig struct {
	TransferType       Mode
	NextBurst          bool
	TotalNumOfDMATrans uint16 // beats - 1, 10 bits
	RPower             ArbSize
	SrcProtCtrl        uint8
	DstProtCtrl        uint8
	SrcSize            Size
	SrcInc             Increment
	DstSize            Size
	DstInc             Increment
}

// BeatField returns the n_minus_1 descriptor field for num beats, clamped to
// the hardware limit of MaxBeats per descriptor.
func BeatField(num uint32) uint16 {
	if num == 0 {
		return 0
	}
	if num < MaxBeats {
		return uint16((num - 1) & 0x3FF)
	}
	return 0x3FF
}

// ControlWord packs the configuration into the PL230 channel_cfg word.
func (c ChannelConfig) ControlWord() uint32 {
	var w uint32
	w |= uint32(c.TransferType) & 0x7
	if c.NextBurst {
		w |= 1 << 3
	}
	w |= (uint32(c.TotalNumOfDMATrans) & 0x3FF) << 4
	w |= (uint32(c.RPower) & 0xF) << 14
	w |= (uint32(c.SrcProtCtrl) & 0x7) << 18
	w |= (uint32(c.DstProtCtrl) & 0x7) << 21
	w |= (uint32(c.SrcSize) & 0x3) << 24
	w |= (uint32(c.SrcInc) & 0x3) << 26
	w |= (uint32(c.DstSize) & 0x3) << 28
	w |= (uint32(c.DstInc) & 0x3) << 30
	return w
}

// Event is a channel completion notification.
type Event uint8

const (
	EventXferDone Event = iota
	EventError
)

func (e Event) String() string {
	switch e {
	case EventXferDone:
		return "xfer-done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Callback receives channel events. It runs in interrupt context.
type Callback func(event Event, ch uint8)

// Endpoint is one side of a DMA transfer: a peripheral register (Mem nil)
// or a RAM buffer.
type Endpoint struct {
	Addr uintptr
	Mem  []byte
}

// Peripheral returns an endpoint for a fixed peripheral register address.
func Peripheral(addr uintptr) Endpoint {
	return Endpoint{Addr: addr}
}

// Memory returns an endpoint for a RAM buffer.
func Memory(b []byte) Endpoint {
	if len(b) == 0 {
		return Endpoint{}
	}
	return Endpoint{Addr: uintptr(unsafe.Pointer(&b[0])), Mem: b}
}

// IsPeripheral reports whether the endpoint refers to a register.
func (e Endpoint) IsPeripheral() bool {
	return e.Mem == nil
}

// Transfer describes one channel programming request.
type Transfer struct {
	Src    Endpoint
	Dst    Endpoint
	Count  uint32 // total beats; counts above MaxBeats are chained
	Config ChannelConfig
}

var (
	ErrChannel     = errors.New("udma: invalid channel")
	ErrTransfer    = errors.New("udma: invalid transfer")
	ErrNotReady    = errors.New("udma: controller not initialized")
	ErrChannelBusy = errors.New("udma: channel busy")
)

// Controller is the DMA channel manager consumed by peripheral drivers.
type Controller interface {
	// Initialize prepares the controller and its descriptor table.
	Initialize() error

	// Uninitialize disables every channel and the controller.
	Uninitialize()

	// ChannelConfigure arms channel ch with the transfer and registers cb
	// as its completion callback. The channel is not enabled.
	ChannelConfigure(ch uint8, xfer Transfer, cb Callback) error

	// ChannelEnable enables a configured channel.
	ChannelEnable(ch uint8) error

	// ChannelDisable stops a channel.
	ChannelDisable(ch uint8) error

	// DMAEnable enables the controller.
	DMAEnable()
}

// Validate checks a transfer against the channel count of a controller.
func Validate(ch uint8, channels int, xfer Transfer) error {
	if int(ch) >= channels {
		return ErrChannel
	}
	if xfer.Count == 0 || xfer.Src.Addr == 0 || xfer.Dst.Addr == 0 {
		return ErrTransfer
	}
	c := xfer.Config
	if c.SrcSize != c.DstSize {
		return ErrTransfer
	}
	if !fits(xfer.Src, c.SrcSize, c.SrcInc, xfer.Count) || !fits(xfer.Dst, c.DstSize, c.DstInc, xfer.Count) {
		return ErrTransfer
	}
	return nil
}

// fits reports whether a memory endpoint can hold count beats
func fits(e Endpoint, size Size, inc Increment, count uint32) bool {
	if e.IsPeripheral() {
		return true
	}
	need := uint64(size.Bytes())
	if inc != IncNone && count > 0 {
		need += uint64(inc.Bytes()) * uint64(count-1)
	}
	return uint64(len(e.Mem)) >= need
}
