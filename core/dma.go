package core

import (
	"gossi/core/ssireg"
	"gossi/mmio"
	"gossi/udma"
)

// handleTxDMA is the transmit channel completion callback
func (d *Driver) handleTxDMA(event udma.Event, ch uint8) {
	switch event {
	case udma.EventXferDone:
		d.xfer.txCnt = d.xfer.num
		// Reading SR clears the error status
		d.regs.Read(ssireg.SR)
		d.status.Busy = false
		// In duplex modes the receive channel reports completion
		if d.tmod() == ssireg.TransmitOnly {
			trace(TraceComplete, d.res.BankID, d.xfer.txCnt, d.xfer.rxCnt)
			d.signal(EventTransferComplete)
		}
	case udma.EventError:
		d.dmaError(ch)
	}
}

// handleRxDMA is the receive channel completion callback
func (d *Driver) handleRxDMA(event udma.Event, ch uint8) {
	switch event {
	case udma.EventXferDone:
		d.xfer.rxCnt = d.xfer.num
		d.status.Busy = false
		if d.res.Mode.isMaster() {
			mmio.ClearBits(d.regs, ssireg.SER, 1<<d.slaveNumber)
		}
		d.regs.Read(ssireg.SR)
		trace(TraceComplete, d.res.BankID, d.xfer.txCnt, d.xfer.rxCnt)
		d.signal(EventTransferComplete)
	case udma.EventError:
		d.dmaError(ch)
	}
}

// dmaError handles a channel error. By default it is ignored and the
// instance stays busy until aborted.
func (d *Driver) dmaError(ch uint8) {
	trace(TraceDMAError, d.res.BankID, uint32(ch), 0)
	if !d.opts.RecoverDMAErrors {
		return
	}
	d.status.Busy = false
	d.status.DataLost = true
	d.regs.Write(ssireg.SSIENR, ssireg.Disable)
	d.signal(EventDataLost)
}
