package sim

import (
	"fmt"

	"gossi/core"
)

// PadCall is one recorded pad controller operation.
type PadCall struct {
	Op   string
	Port uint8
	Pin  uint8
	Arg  uint8
}

func (c PadCall) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", c.Op, c.Port, c.Pin, c.Arg)
}

// Pads records pad, mux and GPIO operations and tracks output levels.
type Pads struct {
	Calls  []PadCall
	levels map[uint8]bool
	output map[uint8]bool
}

// NewPads returns an empty recorder.
func NewPads() *Pads {
	return &Pads{levels: make(map[uint8]bool), output: make(map[uint8]bool)}
}

func (p *Pads) record(op string, port, pin, arg uint8) {
	p.Calls = append(p.Calls, PadCall{Op: op, Port: port, Pin: pin, Arg: arg})
}

func (p *Pads) SetPinMux(port, pin, mode uint8) { p.record("mux", port, pin, mode) }
func (p *Pads) ULPSetPinMux(pin, mode uint8)    { p.record("ulp-mux", 0, pin, mode) }
func (p *Pads) PadSelectionEnable(padSel uint8) { p.record("pad-sel", 0, padSel, 0) }
func (p *Pads) PadReceiverEnable(pin uint8)     { p.record("ren", 0, pin, 0) }
func (p *Pads) ULPPadReceiverEnable(pin uint8)  { p.record("ulp-ren", 0, pin, 0) }
func (p *Pads) HostPadsGPIOModeEnable(pin uint8) {
	p.record("host-pad", 0, pin, 0)
}

func (p *Pads) SetDir(port, pin uint8, output bool) {
	p.output[pin] = output
	p.record("dir", port, pin, boolArg(output))
}

func (p *Pads) SetPin(port, pin uint8, high bool) {
	p.levels[pin] = high
	p.record("set", port, pin, boolArg(high))
}

func (p *Pads) PadDriverDisableState(pin uint8, state core.PadDriverState) {
	p.record("drive", 0, pin, uint8(state))
}

// Level returns the last driven level of a GPIO and whether it was driven.
func (p *Pads) Level(pin uint8) (high, driven bool) {
	high, driven = p.levels[pin]
	return high, driven
}

// Ops returns the recorded operations affecting pin, in order.
func (p *Pads) Ops(pin uint8) []string {
	var ops []string
	for _, c := range p.Calls {
		if c.Pin == pin && c.Op != "pad-sel" {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Reset forgets recorded calls.
func (p *Pads) Reset() {
	p.Calls = nil
}

func boolArg(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Clocks counts clock enables per SSI flavour.
type Clocks struct {
	Master    int
	Slave     int
	ULPMaster int

	LastSource uint8
	LastDiv    uint16
}

func (c *Clocks) SSIMasterClockEnable(source uint8, div uint16) {
	c.Master++
	c.LastSource, c.LastDiv = source, div
}

func (c *Clocks) SSISlaveClockEnable() {
	c.Slave++
}

func (c *Clocks) ULPSSIClockEnable(source uint8, div uint16) {
	c.ULPMaster++
	c.LastSource, c.LastDiv = source, div
}

// Total returns the number of clock enables of any kind.
func (c *Clocks) Total() int {
	return c.Master + c.Slave + c.ULPMaster
}
