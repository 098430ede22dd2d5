package core

import (
	"math"

	"gossi/core/ssireg"
	"gossi/mmio"
	"gossi/udma"
)

// Send starts transmitting num frames from data. Received frames are
// discarded. Completion is signalled through the event callback.
func (d *Driver) Send(data []byte, num uint32) error {
	return d.start(data, nil, num, ssireg.TransmitOnly)
}

// Receive starts receiving num frames into data. A master clocks out the
// default transmit value while receiving.
func (d *Driver) Receive(data []byte, num uint32) error {
	return d.start(nil, data, num, ssireg.ReceiveOnly)
}

// Transfer starts a full-duplex exchange of num frames.
func (d *Driver) Transfer(out, in []byte, num uint32) error {
	if out == nil || in == nil {
		return ErrParameter
	}
	return d.start(out, in, num, ssireg.TransmitAndReceive)
}

// start validates and launches a transfer in the given TMOD
func (d *Driver) start(tx, rx []byte, num uint32, tmod uint32) error {
	if num == 0 || (tx == nil && rx == nil) {
		return ErrParameter
	}
	if d.state&StateConfigured == 0 {
		return ErrDriver
	}
	if d.status.Busy {
		return ErrBusy
	}
	// Buffers must hold num frames at the configured width
	width := d.frameWidth()
	bpf := bytesForWidth(width)
	if num > math.MaxUint32/bpf {
		return ErrParameter
	}
	total := num * bpf
	if (tx != nil && uint64(len(tx)) < uint64(total)) || (rx != nil && uint64(len(rx)) < uint64(total)) {
		return ErrParameter
	}

	d.status = Status{Busy: true}
	d.xfer = transferInfo{tx: tx, rx: rx}

	mmio.SetField(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_TMOD_Msk, ssireg.CTRLR0_TMOD_Pos, tmod)
	if tmod == ssireg.ReceiveOnly && d.res.Mode.isMaster() && d.res.RxDMA != nil {
		mmio.SetField(d.regs, ssireg.CTRLR1, ssireg.CTRLR1_NDF_Msk, ssireg.CTRLR1_NDF_Pos, num-1)
	}
	d.regs.Write(ssireg.SSIENR, ssireg.Enable)

	d.bytesPerFrame = bpf
	d.xfer.num = total
	trace(TraceStart, d.res.BankID, tmod, total)

	if d.res.hasDMA() {
		return d.startDMA(width, num)
	}

	switch tmod {
	case ssireg.TransmitOnly:
		mmio.SetBits(d.regs, ssireg.IMR, ssireg.TXEI|ssireg.TXOI)
	case ssireg.ReceiveOnly:
		mmio.SetBits(d.regs, ssireg.IMR, ssireg.RXUI|ssireg.RXOI|ssireg.RXFI)
		if d.res.Mode.isMaster() {
			// A master has to clock something out to receive
			d.regs.Write(ssireg.DR, uint32(d.fill))
			d.waitIdle()
		}
	default:
		mmio.SetBits(d.regs, ssireg.IMR, ssireg.TXEI|ssireg.TXOI|ssireg.RXUI|ssireg.RXOI|ssireg.RXFI)
	}
	return nil
}

// frameWidth returns the programmed frame width minus one
func (d *Driver) frameWidth() uint32 {
	if d.res.Mode.isMaster() {
		return mmio.Field(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_DFS_32_Msk, ssireg.CTRLR0_DFS_32_Pos)
	}
	return mmio.Field(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_DFS_Msk, ssireg.CTRLR0_DFS_Pos)
}

// bytesForWidth maps a DFS register value to the bytes moved per frame
func bytesForWidth(width uint32) uint32 {
	switch {
	case width <= 7:
		return 1
	case width <= 15:
		return 2
	default:
		return 4
	}
}

// FrameBytes returns the buffer bytes used per frame of the given width.
func FrameBytes(bits uint32) uint32 {
	if bits == 0 {
		return 1
	}
	return bytesForWidth(bits - 1)
}

// dmaSize maps a DFS register value to the DMA beat size
func dmaSize(width uint32) (udma.Size, udma.Increment) {
	switch {
	case width <= 7:
		return udma.Size8, udma.Inc8
	case width <= 15:
		return udma.Size16, udma.Inc16
	default:
		return udma.Size32, udma.Inc32
	}
}

// startDMA programs the bound channels for num frames
func (d *Driver) startDMA(width, num uint32) error {
	size, inc := dmaSize(width)
	dr := udma.Peripheral(d.regs.Addr(ssireg.DR))
	ctl := d.res.DMA

	// The scratch word feeds the fill value to, or swallows frames from,
	// the direction the caller gave no buffer for
	for i := range d.scratch {
		d.scratch[i] = 0
	}
	d.scratch[0] = byte(d.fill)
	d.scratch[1] = byte(d.fill >> 8)
	scratch := udma.Memory(d.scratch[:])

	base := udma.ChannelConfig{
		TransferType:       udma.ModeBasic,
		TotalNumOfDMATrans: udma.BeatField(num),
		RPower:             udma.Arb1,
		SrcSize:            size,
		DstSize:            size,
	}

	var channels []uint8
	if rx := d.res.RxDMA; rx != nil {
		cfg := base
		cfg.SrcInc = udma.IncNone
		dst := scratch
		cfg.DstInc = udma.IncNone
		if d.xfer.rx != nil {
			dst = udma.Memory(d.xfer.rx)
			cfg.DstInc = inc
		}
		mmio.SetBits(d.regs, ssireg.DMACR, ssireg.DMACR_RDMAE)
		d.regs.Write(ssireg.DMARDLR, 0)
		err := ctl.ChannelConfigure(rx.Channel, udma.Transfer{Src: dr, Dst: dst, Count: num, Config: cfg}, d.handleRxDMA)
		if err != nil {
			return d.dmaConfigureFailed()
		}
		channels = append(channels, rx.Channel)
	}
	if tx := d.res.TxDMA; tx != nil {
		cfg := base
		cfg.DstInc = udma.IncNone
		src := scratch
		cfg.SrcInc = udma.IncNone
		if d.xfer.tx != nil {
			src = udma.Memory(d.xfer.tx)
			cfg.SrcInc = inc
		}
		mmio.SetBits(d.regs, ssireg.DMACR, ssireg.DMACR_TDMAE)
		d.regs.Write(ssireg.DMATDLR, 1)
		err := ctl.ChannelConfigure(tx.Channel, udma.Transfer{Src: src, Dst: dr, Count: num, Config: cfg}, d.handleTxDMA)
		if err != nil {
			return d.dmaConfigureFailed()
		}
		channels = append(channels, tx.Channel)
	}

	for _, ch := range channels {
		if err := ctl.ChannelEnable(ch); err != nil {
			return d.dmaConfigureFailed()
		}
	}
	ctl.DMAEnable()
	return nil
}

// dmaConfigureFailed reports a channel setup failure. The vendor driver
// leaves the instance busy; RecoverDMAErrors releases it.
func (d *Driver) dmaConfigureFailed() error {
	trace(TraceDMAError, d.res.BankID, 0, 0)
	if d.opts.RecoverDMAErrors {
		d.regs.Write(ssireg.SSIENR, ssireg.Disable)
		d.status.Busy = false
	}
	return ErrDriver
}
