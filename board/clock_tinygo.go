//go:build tinygo

package board

import (
	"gossi/core"
	"gossi/mmio"
)

// Clock controller registers
const (
	m4ClkBase  = 0x4600_0000
	ulpClkBase = 0x2404_1400

	clkEnableSet2 = 0x08 // HP peripheral clock gates
	clkConfig1    = 0x18 // SSI master source and divider

	ssiMasterGate = 1<<19 | 1<<20 // PCLK and SCLK
	ssiSlaveGate  = 1 << 21

	ssiSrcPos = 0
	ssiSrcMsk = 0x7
	ssiDivPos = 4
	ssiDivMsk = 0xF

	ulpSSIGenOff  = 0x18
	ulpSSIGate    = 1 << 0
	ulpSSISrcPos  = 1
	ulpSSISrcMsk  = 0x7
	ulpSSIDivPos  = 8
	ulpSSIDivMsk  = 0x7F
	ulpEnableSet  = 0x00
	ulpSSIPerGate = 1 << 14
)

// clocks implements core.ClockManager on the M4 and ULP clock trees
type clocks struct {
	hp  *mmio.Registers
	ulp *mmio.Registers
}

var _ core.ClockManager = (*clocks)(nil)

func newClocks() *clocks {
	return &clocks{hp: mmio.NewRegisters(m4ClkBase), ulp: mmio.NewRegisters(ulpClkBase)}
}

func (c *clocks) SSIMasterClockEnable(source uint8, div uint16) {
	mmio.SetField(c.hp, clkConfig1, ssiSrcMsk, ssiSrcPos, uint32(source))
	mmio.SetField(c.hp, clkConfig1, ssiDivMsk, ssiDivPos, uint32(div))
	c.hp.Write(clkEnableSet2, ssiMasterGate)
}

func (c *clocks) SSISlaveClockEnable() {
	c.hp.Write(clkEnableSet2, ssiSlaveGate)
}

func (c *clocks) ULPSSIClockEnable(source uint8, div uint16) {
	mmio.ClearBits(c.ulp, ulpSSIGenOff, ulpSSIGate)
	mmio.SetField(c.ulp, ulpSSIGenOff, ulpSSISrcMsk, ulpSSISrcPos, uint32(source))
	mmio.SetField(c.ulp, ulpSSIGenOff, ulpSSIDivMsk, ulpSSIDivPos, uint32(div))
	mmio.SetBits(c.ulp, ulpSSIGenOff, ulpSSIGate)
	mmio.SetBits(c.ulp, ulpEnableSet, ulpSSIPerGate)
}
