// Package mmio provides access to 32-bit peripheral register banks.
//
// Drivers address registers by byte offset from the bank base. On the MCU
// a Bank is backed by memory-mapped volatile registers; on the host the
// sim package provides banks that model the peripheral behaviour, including
// read side effects such as read-to-clear interrupt registers.
package mmio

// Bank is a block of 32-bit registers addressed by byte offset.
type Bank interface {
	// Read returns the register at offset off. Reads may have side effects
	// (e.g. clear-on-read interrupt registers or FIFO pops).
	Read(off uint32) uint32

	// Write stores v into the register at offset off.
	Write(off uint32, v uint32)

	// Addr returns the bus address of the register at offset off, as seen
	// by a DMA engine.
	Addr(off uint32) uintptr
}

// Field returns the bits of the register selected by mask, shifted down by pos.
// mask is the unshifted field mask (e.g. 0x1F for a 5-bit field).
func Field(b Bank, off, mask, pos uint32) uint32 {
	return (b.Read(off) >> pos) & mask
}

// SetField performs a read-modify-write of a bit field.
func SetField(b Bank, off, mask, pos, v uint32) {
	r := b.Read(off)
	r &^= mask << pos
	r |= (v & mask) << pos
	b.Write(off, r)
}

// SetBits sets the given bits in a register.
func SetBits(b Bank, off, bits uint32) {
	b.Write(off, b.Read(off)|bits)
}

// ClearBits clears the given bits in a register.
func ClearBits(b Bank, off, bits uint32) {
	b.Write(off, b.Read(off)&^bits)
}

// HasBits reports whether all given bits are set.
func HasBits(b Bank, off, bits uint32) bool {
	return b.Read(off)&bits == bits
}
