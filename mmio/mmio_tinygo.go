//go:build tinygo

package mmio

import (
	"runtime/volatile"
	"unsafe"
)

// Registers is a Bank backed by memory-mapped hardware registers.
type Registers struct {
	base uintptr
}

// NewRegisters returns a Bank for the peripheral mapped at base.
func NewRegisters(base uintptr) *Registers {
	return &Registers{base: base}
}

func (r *Registers) reg(off uint32) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(r.base + uintptr(off)))
}

// Read reads the register at off.
func (r *Registers) Read(off uint32) uint32 {
	return r.reg(off).Get()
}

// Write writes the register at off.
func (r *Registers) Write(off uint32, v uint32) {
	r.reg(off).Set(v)
}

// Addr returns the bus address of the register at off.
func (r *Registers) Addr(off uint32) uintptr {
	return r.base + uintptr(off)
}
