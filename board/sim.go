//go:build !tinygo

package board

import (
	"gossi/core"
	"gossi/core/ssireg"
	"gossi/sim"
	"gossi/udma"
)

// SimOptions selects how the simulated board is built.
type SimOptions struct {
	// DMA binds the UDMA channels of every instance
	DMA bool

	// Driver is passed to every driver
	Driver core.Options
}

// Sim is a Board whose peripherals are host models.
type Sim struct {
	Board

	SSI    []*sim.SSI
	UDMA   [2]*sim.UDMA
	NVIC   *sim.NVIC
	Pads   *sim.Pads
	Clocks *sim.Clocks
}

// NewSim builds every SSI instance against the simulation, with interrupt
// lines wired to the drivers' handlers.
func NewSim(opts SimOptions) *Sim {
	s := &Sim{
		NVIC:   sim.NewNVIC(),
		Pads:   sim.NewPads(),
		Clocks: &sim.Clocks{},
	}
	s.UDMA[UDMA0] = sim.NewUDMA(32)
	s.UDMA[UDMA1] = sim.NewUDMA(12)

	for i := range Descriptors {
		desc := &Descriptors[i]
		ssi := sim.NewSSI(desc.Base, desc.Mode == core.InstanceSlave)

		var dma udma.Controller
		if opts.DMA {
			u := s.UDMA[desc.DMA]
			u.Attach(desc.Base, ssireg.Size, ssi)
			dma = u
		}
		res := desc.Resources(ssi, dma)
		res.Pins = s.Pads
		res.Clocks = s.Clocks
		res.NVIC = s.NVIC

		drv := core.New(res, opts.Driver)
		irq := desc.IRQ
		s.NVIC.Connect(irq, ssi.Pending, drv.HandleInterrupt)
		ssi.OnChange = func() { s.NVIC.Notify(irq) }

		s.SSI = append(s.SSI, ssi)
		s.drivers = append(s.drivers, drv)
	}
	return s
}
