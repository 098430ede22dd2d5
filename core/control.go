package core

import (
	"gossi/core/ssireg"
	"gossi/mmio"
)

// Control configures the instance or runs a miscellaneous operation.
// The returned value is only meaningful for GetBusSpeed.
func (d *Driver) Control(control, arg uint32) (uint32, error) {
	if d.state&StatePowered == 0 {
		return 0, ErrDriver
	}
	op := control & ControlMsk
	if op == ModeMaster && d.res.BankID == BankSSISlave {
		return 0, ErrUnsupported
	}
	if op == ModeSlave && d.res.BankID != BankSSISlave {
		return 0, ErrUnsupported
	}
	if op == AbortTransfer {
		d.abort()
		return 0, nil
	}
	if d.status.Busy {
		return 0, ErrBusy
	}
	if op == ModeMaster && arg == 0 {
		return 0, ErrParameter
	}

	d.regs.Write(ssireg.SSIENR, ssireg.Disable)

	switch op {
	case ModeInactive:
		d.mode = d.mode&^ControlMsk | ModeInactive
		d.state &^= StateConfigured
		return 0, nil

	case ModeMaster:
		d.mode = d.mode&^ControlMsk | ModeMaster
		d.state |= StateConfigured
		if err := d.setBusSpeed(arg); err != nil {
			return 0, err
		}

	case ModeSlave:
		d.mode = d.mode&^ControlMsk | ModeSlave
		d.state |= StateConfigured

	case ModeMasterSimplex, ModeSlaveSimplex:
		return 0, ErrMode

	case SetBusSpeed:
		return 0, d.setBusSpeed(arg)

	case GetBusSpeed:
		return d.busSpeed(), nil

	case SetDefaultTxValue:
		d.fill = uint16(arg & 0xFFFF)
		return 0, nil

	case ControlSS:
		return 0, d.controlSS(arg)

	default:
		return 0, ErrUnsupported
	}

	if err := d.configureSlaveSelect(control); err != nil {
		return 0, err
	}
	if err := d.configureFrame(control); err != nil {
		return 0, err
	}

	// Thresholds at zero: TXE fires on an empty FIFO, RXF on every frame
	mmio.ClearBits(d.regs, ssireg.CTRLR0, 1<<ssireg.CTRLR0_SRL_Pos)
	mmio.SetField(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_SPI_FRF_Msk, ssireg.CTRLR0_SPI_FRF_Pos, ssireg.SPIStandard)
	d.regs.Write(ssireg.TXFTLR, 0)
	d.regs.Write(ssireg.RXFTLR, 0)
	if d.res.Mode.isMaster() {
		mmio.ClearBits(d.regs, ssireg.IMR, 0x3F)
	} else {
		mmio.ClearBits(d.regs, ssireg.IMR, 0x1F)
	}
	return 0, nil
}

// abort drops the transfer in flight. Pending interrupt sources are cleared
// by reading ICR.
func (d *Driver) abort() {
	state := disableInterrupts()
	d.regs.Read(ssireg.ICR)
	d.xfer = transferInfo{}
	d.status.Busy = false
	restoreInterrupts(state)
	trace(TraceAbort, d.res.BankID, 0, 0)
}

// setBusSpeed programs the clock divisor for hz
func (d *Driver) setBusSpeed(hz uint32) error {
	if hz == 0 {
		return ErrParameter
	}
	div := d.res.Clock.BaseHz / hz
	if div > ssireg.BAUDR_SCKDV_Msk {
		div = ssireg.BAUDR_SCKDV_Msk
	}
	mmio.SetField(d.regs, ssireg.BAUDR, ssireg.BAUDR_SCKDV_Msk, ssireg.BAUDR_SCKDV_Pos, div)
	return nil
}

// busSpeed derives the bus frequency from the programmed divisor
func (d *Driver) busSpeed() uint32 {
	div := mmio.Field(d.regs, ssireg.BAUDR, ssireg.BAUDR_SCKDV_Msk, ssireg.BAUDR_SCKDV_Pos)
	if div == 0 {
		return 0
	}
	return d.res.Clock.BaseHz / div
}

// controlSS drives the selected chip select
func (d *Driver) controlSS(arg uint32) error {
	if d.mode&ControlMsk != ModeMaster {
		return ErrDriver
	}
	active := arg != SSInactive
	if d.mode&SSMasterModeMsk == SSMasterHWOutput {
		if d.res.Mode.isMaster() {
			if active {
				mmio.SetBits(d.regs, ssireg.SER, 1<<d.slaveNumber)
			} else {
				mmio.ClearBits(d.regs, ssireg.SER, 1<<d.slaveNumber)
			}
		} else if active {
			d.regs.Write(ssireg.SER, 1)
		} else {
			d.regs.Write(ssireg.SER, 0)
		}
		return nil
	}
	cs := d.res.CS[d.slaveNumber]
	if cs == nil {
		return ErrParameter
	}
	// Chip select is active low
	d.pins.SetPin(0, cs.Pin, !active)
	return nil
}

// configureSlaveSelect applies the slave select policy of the control word
func (d *Driver) configureSlaveSelect(control uint32) error {
	switch d.mode & ControlMsk {
	case ModeMaster:
		d.mode &^= SSMasterModeMsk
		switch control & SSMasterModeMsk {
		case SSMasterUnused:
			d.regs.Write(ssireg.SER, 0)

		case SSMasterHWInput:
			return ErrSSMode

		case SSMasterSW:
			cs := d.res.CS[d.slaveNumber]
			if cs == nil {
				return ErrSSMode
			}
			if cs.PadSel != 0 {
				d.pins.PadSelectionEnable(cs.PadSel)
			}
			if cs.Pin > ulpPinBase {
				d.pins.ULPSetPinMux(cs.Pin-ulpPinBase, ulpPadMode)
			}
			d.pins.SetPinMux(0, cs.Pin, 0)
			d.pins.SetDir(0, cs.Pin, true)
			d.pins.SetPin(0, cs.Pin, true)
			d.mode |= SSMasterSW

		case SSMasterHWOutput:
			if !d.res.anyCS() {
				return ErrSSMode
			}
			d.mode |= SSMasterHWOutput
		}

	case ModeSlave:
		d.mode &^= SSSlaveModeMsk
		switch control & SSSlaveModeMsk {
		case SSSlaveHW:
			if !d.res.anyCS() {
				return ErrSSMode
			}
			d.mode |= SSSlaveHW
		case SSSlaveSW:
			return ErrSSMode
		}
	}
	return nil
}

// configureFrame programs clock phase, frame protocol and frame width
func (d *Driver) configureFrame(control uint32) error {
	frf := uint32(ssireg.FrameMotorola)
	switch control & FrameFormatMsk {
	case CPOL0CPHA0:
		d.setClockPhase(false, false)
	case CPOL0CPHA1:
		d.setClockPhase(false, true)
	case CPOL1CPHA0:
		d.setClockPhase(true, false)
	case CPOL1CPHA1:
		d.setClockPhase(true, true)
	case TISSI:
		frf = ssireg.FrameTexasSSP
	case Microwire:
		frf = ssireg.FrameMicrowire
	default:
		return ErrFrameFormat
	}

	bits := (control & DataBitsMsk) >> DataBitsPos
	if d.res.Mode.isMaster() {
		if bits < 4 || bits > 32 {
			return ErrDataBits
		}
		mmio.SetField(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_DFS_32_Msk, ssireg.CTRLR0_DFS_32_Pos, bits-1)
	} else {
		if bits < 4 || bits > 16 {
			return ErrDataBits
		}
		mmio.SetField(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_DFS_Msk, ssireg.CTRLR0_DFS_Pos, bits-1)
	}

	if control&BitOrderMsk == LSBMSB {
		return ErrBitOrder
	}
	mmio.SetField(d.regs, ssireg.CTRLR0, ssireg.CTRLR0_FRF_Msk, ssireg.CTRLR0_FRF_Pos, frf)
	return nil
}

func (d *Driver) setClockPhase(cpol, cpha bool) {
	if cpol {
		mmio.SetBits(d.regs, ssireg.CTRLR0, 1<<ssireg.CTRLR0_SCPOL_Pos)
	} else {
		mmio.ClearBits(d.regs, ssireg.CTRLR0, 1<<ssireg.CTRLR0_SCPOL_Pos)
	}
	if cpha {
		mmio.SetBits(d.regs, ssireg.CTRLR0, 1<<ssireg.CTRLR0_SCPH_Pos)
	} else {
		mmio.ClearBits(d.regs, ssireg.CTRLR0, 1<<ssireg.CTRLR0_SCPH_Pos)
	}
}
