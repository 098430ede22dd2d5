//go:build tinygo

package board

import (
	"gossi/core"
	"gossi/mmio"
)

// EGPIO and pad configuration blocks
const (
	egpioBase    = 0x4613_0000 // HP GPIO controller
	ulpEgpioBase = 0x2404_C000 // ULP GPIO controller
	padBase      = 0x4600_4000 // HP pad configuration, one word per pad
	ulpPadBase   = 0x2404_1000 // ULP pad receiver enables
	padSelBase   = 0x4130_0000 // pad selection and host pad GPIO mode
)

// Per-pin GPIO_CONFIG_REG / BIT_LOAD_REG layout
const (
	pinStride    = 0x10
	pinConfigOff = 0x00
	pinLoadOff   = 0x04

	pinDirInput = 1 << 0
	pinModePos  = 2
	pinModeMsk  = 0xF
)

const (
	padRENBit   = 1 << 4
	padDrvMsk   = 0x3
	padSelOff   = 0x610 // pads 0-21
	padSel2Off  = 0x618 // pads 22 and up
	hostPadsOff = 0x044
	hostPadBase = 25
)

// pads implements core.PinMux on the SiWx917 GPIO blocks
type pads struct {
	hp     *mmio.Registers
	ulp    *mmio.Registers
	pad    *mmio.Registers
	ulpPad *mmio.Registers
	sel    *mmio.Registers
}

var _ core.PinMux = (*pads)(nil)

func newPads() *pads {
	return &pads{
		hp:     mmio.NewRegisters(egpioBase),
		ulp:    mmio.NewRegisters(ulpEgpioBase),
		pad:    mmio.NewRegisters(padBase),
		ulpPad: mmio.NewRegisters(ulpPadBase),
		sel:    mmio.NewRegisters(padSelBase),
	}
}

// pinOffset maps a port/pin pair to its configuration word; ports hold 16 pins
func pinOffset(port, pin uint8) uint32 {
	return (uint32(port)*16 + uint32(pin)) * pinStride
}

func (p *pads) SetPinMux(port, pin, mode uint8) {
	mmio.SetField(p.hp, pinOffset(port, pin)+pinConfigOff, pinModeMsk, pinModePos, uint32(mode))
}

func (p *pads) ULPSetPinMux(pin, mode uint8) {
	mmio.SetField(p.ulp, pinOffset(0, pin)+pinConfigOff, pinModeMsk, pinModePos, uint32(mode))
}

func (p *pads) PadSelectionEnable(padSel uint8) {
	if padSel < 22 {
		mmio.SetBits(p.sel, padSelOff, 1<<padSel)
		return
	}
	mmio.SetBits(p.sel, padSel2Off, 1<<(padSel-22))
}

func (p *pads) PadReceiverEnable(pin uint8) {
	mmio.SetBits(p.pad, 4*uint32(pin), padRENBit)
}

func (p *pads) ULPPadReceiverEnable(pin uint8) {
	mmio.SetBits(p.ulpPad, 0, 1<<pin)
}

func (p *pads) HostPadsGPIOModeEnable(pin uint8) {
	if pin >= hostPadBase {
		mmio.SetBits(p.sel, hostPadsOff, 1<<(pin-hostPadBase))
	}
}

func (p *pads) SetDir(port, pin uint8, output bool) {
	off := pinOffset(port, pin) + pinConfigOff
	if output {
		mmio.ClearBits(p.hp, off, pinDirInput)
	} else {
		mmio.SetBits(p.hp, off, pinDirInput)
	}
}

func (p *pads) SetPin(port, pin uint8, high bool) {
	var v uint32
	if high {
		v = 1
	}
	p.hp.Write(pinOffset(port, pin)+pinLoadOff, v)
}

func (p *pads) PadDriverDisableState(pin uint8, state core.PadDriverState) {
	mmio.SetField(p.pad, 4*uint32(pin), padDrvMsk, 0, uint32(state))
}
