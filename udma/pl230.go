package udma

import (
	"unsafe"

	"gossi/mmio"
)

// PL230 register offsets
const (
	regStatus        = 0x000
	regCfg           = 0x004
	regCtrlBasePtr   = 0x008
	regAltCtrlBase   = 0x00C
	regChnlSWRequest = 0x014
	regUseburstSet   = 0x018
	regUseburstClr   = 0x01C
	regReqMaskSet    = 0x020
	regReqMaskClr    = 0x024
	regEnableSet     = 0x028
	regEnableClr     = 0x02C
	regPriAltSet     = 0x030
	regPriAltClr     = 0x034
	regPrioritySet   = 0x038
	regPriorityClr   = 0x03C
	regErrClr        = 0x04C
)

const (
	cfgMasterEnable = 1 << 0

	// MaxChannels is the channel count of the largest UDMA instance
	MaxChannels = 32

	tableAlign = 1024
)

// descriptor is one PL230 channel control structure
type descriptor struct {
	SrcEnd  uint32
	DstEnd  uint32
	Control uint32
	_       uint32
}

type channel struct {
	xfer   Transfer
	done   uint32 // beats completed by earlier descriptors
	chunk  uint32 // beats in the armed descriptor
	cb     Callback
	active bool
}

// PL230 drives an ARM PL230 micro-DMA controller. Transfers longer than
// MaxBeats are split into consecutive descriptors, re-armed from
// HandleInterrupt until the whole count has moved.
type PL230 struct {
	regs     mmio.Bank
	channels int
	backing  []descriptor
	table    []descriptor // primary then alternate, 1 KiB aligned
	chans    [MaxChannels]channel
	ready    bool
}

// NewPL230 returns a controller over the register bank with the given
// number of channels.
func NewPL230(regs mmio.Bank, channels int) *PL230 {
	if channels > MaxChannels {
		channels = MaxChannels
	}
	return &PL230{regs: regs, channels: channels}
}

// Initialize allocates the descriptor table and points the controller at it.
func (d *PL230) Initialize() error {
	if d.ready {
		return nil
	}
	if d.table == nil {
		// Over-allocate so the table can start on a 1 KiB boundary
		d.backing = make([]descriptor, 2*MaxChannels+tableAlign/16)
		base := uintptr(unsafe.Pointer(&d.backing[0]))
		skip := ((tableAlign - base%tableAlign) % tableAlign) / 16
		d.table = d.backing[skip : skip+2*MaxChannels]
	}
	d.regs.Write(regCfg, 0)
	d.regs.Write(regCtrlBasePtr, uint32(uintptr(unsafe.Pointer(&d.table[0]))))
	d.regs.Write(regEnableClr, 0xFFFF_FFFF)
	d.regs.Write(regErrClr, 1)
	d.ready = true
	return nil
}

// Uninitialize stops every channel and disables the controller.
func (d *PL230) Uninitialize() {
	d.regs.Write(regEnableClr, 0xFFFF_FFFF)
	d.regs.Write(regCfg, 0)
	for i := range d.chans {
		d.chans[i] = channel{}
	}
	d.ready = false
}

// ChannelConfigure writes the primary descriptor for ch. Peripheral
// requests are unmasked and the primary structure is selected.
func (d *PL230) ChannelConfigure(ch uint8, xfer Transfer, cb Callback) error {
	if !d.ready {
		return ErrNotReady
	}
	if err := Validate(ch, d.channels, xfer); err != nil {
		return err
	}
	if xfer.Config.TransferType == ModeStop {
		xfer.Config.TransferType = ModeBasic
	}
	bit := uint32(1) << ch
	d.regs.Write(regEnableClr, bit)

	c := &d.chans[ch]
	*c = channel{xfer: xfer, cb: cb, active: true}
	d.arm(ch)

	d.regs.Write(regReqMaskClr, bit)
	d.regs.Write(regPriAltClr, bit)
	if xfer.Config.NextBurst {
		d.regs.Write(regUseburstSet, bit)
	} else {
		d.regs.Write(regUseburstClr, bit)
	}
	return nil
}

// arm programs the next chunk of the channel's transfer
func (d *PL230) arm(ch uint8) {
	c := &d.chans[ch]
	remaining := c.xfer.Count - c.done
	c.chunk = remaining
	if c.chunk > MaxBeats {
		c.chunk = MaxBeats
	}

	cfg := c.xfer.Config
	cfg.TotalNumOfDMATrans = BeatField(c.chunk)
	d.table[ch] = descriptor{
		SrcEnd:  endPointer(c.xfer.Src, cfg.SrcInc, c.done, c.chunk),
		DstEnd:  endPointer(c.xfer.Dst, cfg.DstInc, c.done, c.chunk),
		Control: cfg.ControlWord(),
	}
}

// endPointer returns the address of the last beat of a chunk
func endPointer(e Endpoint, inc Increment, done, chunk uint32) uint32 {
	if inc == IncNone {
		return uint32(e.Addr)
	}
	step := inc.Bytes()
	return uint32(e.Addr) + (done+chunk-1)*step
}

// ChannelEnable starts a configured channel.
func (d *PL230) ChannelEnable(ch uint8) error {
	if int(ch) >= d.channels {
		return ErrChannel
	}
	if !d.chans[ch].active {
		return ErrTransfer
	}
	d.regs.Write(regEnableSet, 1<<ch)
	return nil
}

// ChannelDisable stops a channel and forgets its transfer.
func (d *PL230) ChannelDisable(ch uint8) error {
	if int(ch) >= d.channels {
		return ErrChannel
	}
	d.regs.Write(regEnableClr, 1<<ch)
	d.chans[ch] = channel{}
	return nil
}

// DMAEnable sets the controller master enable.
func (d *PL230) DMAEnable() {
	d.regs.Write(regCfg, cfgMasterEnable)
}

// HandleInterrupt services the done interrupt. The controller writes the
// cycle type of a finished descriptor back to stop, which is how finished
// channels are found.
func (d *PL230) HandleInterrupt() {
	for ch := 0; ch < d.channels; ch++ {
		c := &d.chans[ch]
		if !c.active || d.table[ch].Control&0x7 != uint32(ModeStop) {
			continue
		}
		c.done += c.chunk
		if c.done < c.xfer.Count {
			d.arm(uint8(ch))
			d.regs.Write(regEnableSet, 1<<uint(ch))
			continue
		}
		cb := c.cb
		c.active = false
		if cb != nil {
			cb(EventXferDone, uint8(ch))
		}
	}
}

// HandleError services the bus error interrupt. Every active channel is
// stopped and told about the error.
func (d *PL230) HandleError() {
	if d.regs.Read(regErrClr) == 0 {
		return
	}
	d.regs.Write(regErrClr, 1)
	for ch := 0; ch < d.channels; ch++ {
		c := &d.chans[ch]
		if !c.active {
			continue
		}
		cb := c.cb
		c.active = false
		d.regs.Write(regEnableClr, 1<<uint(ch))
		if cb != nil {
			cb(EventError, uint8(ch))
		}
	}
}

// Progress returns the number of beats completed for a channel's transfer.
func (d *PL230) Progress(ch uint8) uint32 {
	if int(ch) >= d.channels {
		return 0
	}
	return d.chans[ch].done
}
