//go:build tinygo

package board

import (
	"runtime/interrupt"

	"gossi/core"
	"gossi/mmio"
	"gossi/udma"
)

// UDMA register banks
const (
	baseUDMA0 = 0x4403_0000
	baseUDMA1 = 0x2407_8000

	irqUDMA0 = 33
	irqUDMA1 = 10
)

// Cortex-M NVIC set/clear registers
const (
	nvicBase = 0xE000_E000
	nvicISER = 0x100
	nvicICER = 0x180
	nvicICPR = 0x280
)

// nvic drives the Cortex-M interrupt controller
type nvic struct {
	regs *mmio.Registers
}

func (n nvic) EnableIRQ(irq uint32) {
	n.regs.Write(nvicISER+4*(irq>>5), 1<<(irq&0x1F))
}

func (n nvic) DisableIRQ(irq uint32) {
	n.regs.Write(nvicICER+4*(irq>>5), 1<<(irq&0x1F))
}

func (n nvic) ClearPendingIRQ(irq uint32) {
	n.regs.Write(nvicICPR+4*(irq>>5), 1<<(irq&0x1F))
}

var (
	hw   *Board
	dmas [2]*udma.PL230
)

// Hardware returns the MCU board and registers the SiWx917 pad, clock and
// NVIC collaborators with core. withDMA binds the UDMA channels of every
// instance.
func Hardware(withDMA bool, opts core.Options) *Board {
	if hw != nil {
		return hw
	}
	core.SetPinMux(newPads())
	core.SetClockManager(newClocks())
	core.SetIRQController(nvic{regs: mmio.NewRegisters(nvicBase)})

	dmas[UDMA0] = udma.NewPL230(mmio.NewRegisters(baseUDMA0), 32)
	dmas[UDMA1] = udma.NewPL230(mmio.NewRegisters(baseUDMA1), 12)

	b := &Board{}
	for i := range Descriptors {
		desc := &Descriptors[i]
		var dma udma.Controller
		if withDMA {
			dma = dmas[desc.DMA]
		}
		res := desc.Resources(mmio.NewRegisters(desc.Base), dma)
		b.drivers = append(b.drivers, core.New(res, opts))
	}
	hw = b

	// SSI lines are enabled by the drivers on PowerFull
	interrupt.New(47, func(interrupt.Interrupt) { hw.drivers[BusMaster].HandleInterrupt() })
	interrupt.New(16, func(interrupt.Interrupt) { hw.drivers[BusULPMaster].HandleInterrupt() })
	interrupt.New(44, func(interrupt.Interrupt) { hw.drivers[BusSlave].HandleInterrupt() })
	interrupt.New(irqUDMA0, func(interrupt.Interrupt) {
		dmas[UDMA0].HandleError()
		dmas[UDMA0].HandleInterrupt()
	}).Enable()
	interrupt.New(irqUDMA1, func(interrupt.Interrupt) {
		dmas[UDMA1].HandleError()
		dmas[UDMA1].HandleInterrupt()
	}).Enable()
	return b
}
