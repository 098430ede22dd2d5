package core

import (
	"gossi/core/ssireg"
	"gossi/mmio"
)

// HandleInterrupt services the SSI interrupt line. Board code calls it from
// the instance's interrupt vector. At most one frame moves per call; the
// controller re-raises TXE/RXF until the transfer completes.
func (d *Driver) HandleInterrupt() {
	isr := d.regs.Read(ssireg.ISR)
	sr := d.regs.Read(ssireg.SR)
	d.regs.Read(ssireg.ICR)

	var event Event
	x := &d.xfer

	switch {
	case isr&ssireg.OverrunMask != 0:
		d.regs.Read(ssireg.TXOICR)
		d.regs.Read(ssireg.RXOICR)
		d.regs.Read(ssireg.RXUICR)
		d.status.DataLost = true
		event |= EventDataLost
		trace(TraceDataLost, d.res.BankID, isr, x.rxCnt)

	case sr&ssireg.SR_RFNE != 0 && isr&ssireg.RXFI != 0:
		if x.rx == nil {
			break
		}
		if x.rxCnt >= x.num {
			// Frame arrived after the transfer completed
			event |= EventDataLost
			break
		}
		data := d.regs.Read(ssireg.DR)
		for i := uint32(0); i < d.bytesPerFrame; i++ {
			x.rx[x.rxCnt] = byte(data >> (8 * i))
			x.rxCnt++
		}
		if x.rxCnt >= x.num {
			mmio.ClearBits(d.regs, ssireg.IMR, ssireg.RXFI)
			d.status.Busy = false
			event |= EventTransferComplete
			trace(TraceComplete, d.res.BankID, x.txCnt, x.rxCnt)
		} else if d.res.Mode.isMaster() && x.tx == nil {
			d.regs.Write(ssireg.DR, uint32(d.fill))
			d.waitIdle()
		}

	case sr&ssireg.SR_TFE != 0 && isr&ssireg.TXEI != 0:
		if x.tx == nil {
			break
		}
		if x.txCnt >= x.num {
			event |= EventDataLost
			break
		}
		var data uint32
		for i := uint32(0); i < d.bytesPerFrame; i++ {
			data |= uint32(x.tx[x.txCnt]) << (8 * i)
			x.txCnt++
		}
		d.regs.Write(ssireg.DR, data)
		d.waitIdle()
		if x.txCnt >= x.num {
			mmio.ClearBits(d.regs, ssireg.IMR, ssireg.TXEI)
			if d.tmod() == ssireg.TransmitOnly {
				d.status.Busy = false
				event |= EventTransferComplete
				trace(TraceComplete, d.res.BankID, x.txCnt, x.rxCnt)
			}
		}
	}

	d.signal(event)
}

// tmod returns the programmed transfer mode
func (d *Driver) tmod() uint32 {
	return mmio.Field(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_TMOD_Msk, ssireg.CTRLR0_TMOD_Pos)
}

// waitIdle polls SR.BUSY until the frame has been shifted out. The busy bit
// clears within one frame time; the poll count is bounded so a wedged
// controller cannot hang the interrupt handler.
func (d *Driver) waitIdle() bool {
	for i := 0; i < d.opts.SpinLimit; i++ {
		if d.regs.Read(ssireg.SR)&ssireg.SR_BUSY == 0 {
			return true
		}
	}
	trace(TraceSpinTimeout, d.res.BankID, d.regs.Read(ssireg.SR), 0)
	return false
}
