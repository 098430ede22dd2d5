// Package board holds the SSI instance tables of the SiWx917 and builds
// ready-to-use driver sets, either on the MCU or on the host simulation.
package board

import (
	"errors"

	"gossi/core"
	"gossi/core/ssireg"
	"gossi/mmio"
	"gossi/udma"
)

// Bus numbers used by the bridge and the spi driver Opener
const (
	BusMaster    = 0
	BusULPMaster = 1
	BusSlave     = 2
)

// ErrNoBus is returned for a bus number the board does not have.
var ErrNoBus = errors.New("board: no such SPI bus")

// DMA controller instances
const (
	UDMA0 = 0 // HP domain, serves SSI master and slave
	UDMA1 = 1 // ULP domain, serves ULP SSI master
)

// Descriptor is the static configuration of one SSI instance.
type Descriptor struct {
	Name string
	Mode core.InstanceMode
	Bank core.BankID
	Base uintptr

	SCK  core.Pin
	MOSI core.Pin
	MISO core.Pin
	CS   []core.Pin

	Clock core.ClockConfig
	IRQ   uint32

	DMA     int // UDMA0 or UDMA1
	RxDMACh uint8
	TxDMACh uint8
}

// Descriptors is indexed by bus number.
var Descriptors = [...]Descriptor{
	BusMaster: {
		Name:  "ssi-master",
		Mode:  core.InstanceMaster,
		Bank:  core.BankSSI0,
		Base:  ssireg.BaseSSI0,
		SCK:   core.Pin{Port: 0, Pin: 25, Mux: 3},
		MOSI:  core.Pin{Port: 0, Pin: 26, Mux: 3},
		MISO:  core.Pin{Port: 0, Pin: 27, Mux: 3},
		CS:    []core.Pin{{Port: 0, Pin: 28, Mux: 3}},
		Clock: core.ClockConfig{Source: 0, DivFactor: 1, BaseHz: 40_000_000},
		IRQ:   47,
		DMA:   UDMA0,
		// Channels 10/11 are the SSI master handshakes on UDMA0
		RxDMACh: 10,
		TxDMACh: 11,
	},
	BusULPMaster: {
		Name:    "ulp-ssi-master",
		Mode:    core.InstanceULPMaster,
		Bank:    core.BankSSI2,
		Base:    ssireg.BaseSSI2,
		SCK:     core.Pin{Port: 0, Pin: 8, Mux: 1},
		MOSI:    core.Pin{Port: 0, Pin: 1, Mux: 1},
		MISO:    core.Pin{Port: 0, Pin: 2, Mux: 1},
		CS:      []core.Pin{{Port: 0, Pin: 10, Mux: 1}},
		Clock:   core.ClockConfig{ULPSource: 1, DivFactor: 1, BaseHz: 32_000_000},
		IRQ:     16,
		DMA:     UDMA1,
		RxDMACh: 2,
		TxDMACh: 3,
	},
	BusSlave: {
		Name:    "ssi-slave",
		Mode:    core.InstanceSlave,
		Bank:    core.BankSSISlave,
		Base:    ssireg.BaseSSISlave,
		SCK:     core.Pin{Port: 0, Pin: 52, Mux: 8},
		MOSI:    core.Pin{Port: 0, Pin: 55, Mux: 8},
		MISO:    core.Pin{Port: 0, Pin: 56, Mux: 8},
		CS:      []core.Pin{{Port: 0, Pin: 53, Mux: 8}},
		Clock:   core.ClockConfig{BaseHz: 40_000_000},
		IRQ:     44,
		DMA:     UDMA0,
		RxDMACh: 22,
		TxDMACh: 23,
	},
}

// Resources builds the driver resources for the descriptor. A nil dma
// leaves the instance in interrupt mode.
func (d *Descriptor) Resources(regs mmio.Bank, dma udma.Controller) *core.Resources {
	res := &core.Resources{
		Name:   d.Name,
		Mode:   d.Mode,
		BankID: d.Bank,
		Regs:   regs,
		SCK:    pin(d.SCK),
		MOSI:   pin(d.MOSI),
		MISO:   pin(d.MISO),
		Clock:  d.Clock,
		IRQ:    d.IRQ,
	}
	for i := range d.CS {
		if i < len(res.CS) {
			res.CS[i] = pin(d.CS[i])
		}
	}
	if dma != nil {
		res.DMA = dma
		res.RxDMA = &core.DMABinding{Channel: d.RxDMACh}
		res.TxDMA = &core.DMABinding{Channel: d.TxDMACh}
	}
	return res
}

func pin(p core.Pin) *core.Pin {
	return &p
}

// Board is a set of SSI drivers indexed by bus number.
type Board struct {
	drivers []*core.Driver
}

// Bus returns the driver for bus n.
func (b *Board) Bus(n int) (*core.Driver, error) {
	if n < 0 || n >= len(b.drivers) || b.drivers[n] == nil {
		return nil, ErrNoBus
	}
	return b.drivers[n], nil
}

// NumBuses returns the number of buses on the board.
func (b *Board) NumBuses() int {
	return len(b.drivers)
}
